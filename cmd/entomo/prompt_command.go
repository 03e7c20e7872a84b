package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"entomo/internal/cascade"
	"entomo/internal/services/classifier"
	"entomo/internal/services/vlm"
)

func newPromptCommand(ctx *commandContext) *cobra.Command {
	var (
		predictionsPath string
		topK            int
	)

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the vision-language prompt for a set of predictions without calling any model",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.loadCascade()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("top-k") {
				topK = deps.cfg.Cascade.TopK
			}
			preds, err := classifier.FileSource{Path: predictionsPath}.Predict(cmd.Context(), vlm.Image{})
			if err != nil {
				return err
			}
			cands := cascade.SelectTopK(classifier.Scores(preds), topK, deps.catalog)
			if len(cands) == 0 {
				return fmt.Errorf("prompt: %w", cascade.ErrNoCandidates)
			}
			fmt.Fprint(cmd.OutOrStdout(), cascade.BuildPrompt(cascade.Indices(cands), deps.catalog))
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVarP(&predictionsPath, "predictions", "p", "", "Precomputed primary predictions (JSON)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of candidates (defaults to config)")
	_ = cmd.MarkFlagRequired("predictions")
	return cmd
}
