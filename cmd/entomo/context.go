package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"entomo/internal/cascade"
	"entomo/internal/config"
	"entomo/internal/history"
	"entomo/internal/knowledge"
	"entomo/internal/logging"
	"entomo/internal/services/classifier"
	"entomo/internal/services/vlm"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

type cascadeDeps struct {
	cfg     *config.Config
	logger  *slog.Logger
	catalog *knowledge.Catalog
	model   *vlm.Lazy
}

// loadCascade reads the knowledge catalog and prepares the lazy secondary
// model. The model is not constructed until a request escalates.
func (c *commandContext) loadCascade() (*cascadeDeps, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	catalog, err := knowledge.OpenCatalog(cfg.Paths.KnowledgeFile, cfg.Paths.ClassIndexFile)
	if err != nil {
		return nil, err
	}
	if len(catalog.Index()) == 0 {
		logging.WarnWithContext(logger, "class index is empty", "class_index_empty",
			logging.String(logging.FieldErrorHint, "set paths.class_index_file"),
			logging.String(logging.FieldImpact, "uncertain results fall back to the primary classifier"),
		)
	}
	vlmCfg := cfg.VLM
	model := vlm.NewLazy(func(ctx context.Context) (vlm.Model, error) {
		return vlm.New(ctx, vlmCfg, logger)
	})
	return &cascadeDeps{cfg: cfg, logger: logger, catalog: catalog, model: model}, nil
}

func (d *cascadeDeps) orchestrator(opts ...cascade.Option) *cascade.Orchestrator {
	base := []cascade.Option{
		cascade.WithLogger(d.logger),
		cascade.WithSecondaryTimeout(d.cfg.SecondaryTimeout()),
	}
	return cascade.NewOrchestrator(d.catalog, d.catalog, d.model, append(base, opts...)...)
}

// predictor returns the file source when a predictions file is given and the
// configured inference endpoint otherwise.
func predictor(cfg *config.Config, predictionsPath string) (classifier.Predictor, error) {
	if path := strings.TrimSpace(predictionsPath); path != "" {
		return classifier.FileSource{Path: path}, nil
	}
	if cfg.Classifier.Endpoint != "" {
		return classifier.NewHTTPClient(cfg.Classifier.Endpoint, cfg.ClassifierTimeout(), nil), nil
	}
	return nil, fmt.Errorf("no predictions: pass --predictions or set classifier.endpoint")
}

func (c *commandContext) openHistory() (*history.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.Paths.HistoryDB)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
