package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"entomo/internal/cascade"
	"entomo/internal/logging"
	"entomo/internal/services/classifier"
	"entomo/internal/services/vlm"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var (
		imagePath       string
		predictionsPath string
		threshold       float64
		topK            int
		jsonOutput      bool
		showPrompt      bool
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one image, escalating uncertain results to the vision-language model",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.loadCascade()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = deps.cfg.Cascade.Threshold
			} else if !(threshold >= 0 && threshold <= 100) {
				return fmt.Errorf("--threshold must be between 0 and 100, got %v", threshold)
			}
			if !cmd.Flags().Changed("top-k") {
				topK = deps.cfg.Cascade.TopK
			}

			img, err := vlm.LoadImage(imagePath)
			if err != nil {
				return err
			}
			source, err := predictor(deps.cfg, predictionsPath)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			preds, err := source.Predict(runCtx, img)
			if err != nil {
				return err
			}

			sessionID := "cli-" + uuid.NewString()
			session, err := cascade.NewSession(sessionID, deps.orchestrator(), threshold, topK)
			if err != nil {
				return err
			}
			result, err := session.Classify(runCtx, img, classifier.Scores(preds))
			var secondaryErr *cascade.SecondaryModelError
			if err != nil && !errors.As(err, &secondaryErr) {
				return err
			}

			if deps.cfg.History.Enabled {
				recordHistory(runCtx, ctx, deps, sessionID, img.Name, result)
			}

			if jsonOutput {
				return writeJSON(cmd, result)
			}
			printResult(cmd, result, showPrompt)
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Image file to classify")
	cmd.Flags().StringVarP(&predictionsPath, "predictions", "p", "", "Precomputed primary predictions (JSON); defaults to classifier.endpoint")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0, "Confidence above which the vision-language model is skipped (defaults to config)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Candidates offered to the vision-language model (defaults to config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "Print the prompt sent to the vision-language model")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func recordHistory(runCtx context.Context, ctx *commandContext, deps *cascadeDeps, sessionID, imageName string, result cascade.Result) {
	store, err := ctx.openHistory()
	if err != nil {
		logging.WarnWithContext(deps.logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "result not journaled"),
		)
		return
	}
	defer store.Close()
	if err := store.Record(runCtx, sessionID, imageName, result); err != nil {
		logging.WarnWithContext(deps.logger, "history record failed", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "result not journaled"),
		)
	}
}

func printResult(cmd *cobra.Command, result cascade.Result, showPrompt bool) {
	out := cmd.OutOrStdout()
	color := shouldColorize(out)

	rows := make([][]string, 0, len(result.PrimaryTopK))
	for i, score := range result.PrimaryTopK {
		rows = append(rows, []string{strconv.Itoa(i + 1), score.ID, formatConfidence(score.Confidence)})
	}
	fmt.Fprintln(out, "Primary classifier")
	fmt.Fprintln(out, renderTable([]string{"#", "Label", "Confidence"}, rows, []columnAlignment{alignRight, alignLeft, alignRight}))

	fmt.Fprintf(out, "Threshold: %s\n", formatConfidence(result.Threshold))
	fmt.Fprintf(out, "Secondary model used: %s\n", yesNo(result.UsedSecondaryModel))
	if result.UsedSecondaryModel {
		if len(result.Candidates) > 0 {
			ids := make([]string, 0, len(result.Candidates))
			for _, c := range result.Candidates {
				ids = append(ids, c.ID)
			}
			fmt.Fprintf(out, "Candidates: %s\n", strings.Join(ids, ", "))
		}
		fmt.Fprintf(out, "Secondary output: %s\n", colorize(strings.TrimSpace(result.SecondaryRawText), ansiCyan, color))
		if result.Fallback && result.FallbackReason != "" {
			fmt.Fprintf(out, "Fallback: %s\n", colorize(result.FallbackReason, ansiYellow, color))
		}
		if showPrompt && result.Prompt != "" {
			fmt.Fprintln(out)
			fmt.Fprintln(out, result.Prompt)
			fmt.Fprintln(out)
		}
	}
	fmt.Fprintf(out, "Final: %s\n", colorize(result.FinalIdentifier, ansiGreen, color))
}
