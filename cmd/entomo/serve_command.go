package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"entomo/internal/api"
	"entomo/internal/cascade"
	"entomo/internal/knowledge"
	"entomo/internal/logging"
	"entomo/internal/metrics"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve classification sessions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := ctx.loadCascade()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("bind") {
				bind = deps.cfg.API.Bind
			}

			lock, err := acquireServeLock(deps.cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					deps.logger.Warn("failed to release serve lock", logging.Error(err))
				}
			}()

			opts := api.Options{
				Bind:      bind,
				Token:     deps.cfg.API.Token,
				Threshold: deps.cfg.Cascade.Threshold,
				TopK:      deps.cfg.Cascade.TopK,
				Logger:    deps.logger,
			}

			var orchOpts []cascade.Option
			if deps.cfg.API.Metrics {
				collector := metrics.New()
				orchOpts = append(orchOpts, cascade.WithRecorder(collector))
				opts.Gauge = collector
				opts.Metrics = collector.Handler()
			}
			opts.Orchestrator = deps.orchestrator(orchOpts...)

			if deps.cfg.Classifier.Endpoint != "" {
				source, err := predictor(deps.cfg, "")
				if err != nil {
					return err
				}
				opts.Predictor = source
			}

			if deps.cfg.History.Enabled {
				journal, err := ctx.openHistory()
				if err != nil {
					return err
				}
				defer journal.Close()
				opts.Journal = journal
			}

			server, err := api.NewServer(opts)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if deps.cfg.API.WatchKnowledge {
				if watcher, err := knowledge.NewWatcher(deps.catalog, deps.logger, 0); err != nil {
					logging.WarnWithContext(deps.logger, "knowledge watch disabled", "knowledge_watch_disabled",
						logging.Error(err),
						logging.String(logging.FieldImpact, "restart to pick up knowledge changes"),
					)
				} else {
					go watcher.Run(runCtx)
				}
			}

			if err := server.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", server.Addr())

			<-runCtx.Done()
			server.Stop()
			deps.logger.Info("api server stopped", logging.String("address", server.Addr()))
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to api.bind)")
	return cmd
}
