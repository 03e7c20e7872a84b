package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeVLM()
	c.normalizeClassifier()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.knowledge_file", &c.Paths.KnowledgeFile, ""},
		{"paths.class_index_file", &c.Paths.ClassIndexFile, ""},
		{"paths.history_db", &c.Paths.HistoryDB, defaultHistoryDB},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeVLM() {
	c.VLM.Provider = strings.ToLower(strings.TrimSpace(c.VLM.Provider))
	if c.VLM.Provider == "" {
		c.VLM.Provider = defaultVLMProvider
	}
	c.VLM.APIKey = strings.TrimSpace(c.VLM.APIKey)
	if c.VLM.APIKey == "" {
		c.VLM.APIKey = c.apiKeyFromEnv()
	}
	c.VLM.BaseURL = strings.TrimSpace(c.VLM.BaseURL)
	c.VLM.Model = strings.TrimSpace(c.VLM.Model)
	c.VLM.Referer = strings.TrimSpace(c.VLM.Referer)
	c.VLM.Title = strings.TrimSpace(c.VLM.Title)
	switch c.VLM.Provider {
	case ProviderOpenAI:
		if c.VLM.BaseURL == "" {
			c.VLM.BaseURL = defaultOpenAIBaseURL
		}
		if c.VLM.Model == "" {
			c.VLM.Model = defaultOpenAIModel
		}
	case ProviderGemini:
		if c.VLM.Model == "" {
			c.VLM.Model = defaultGeminiModel
		}
	}
	if c.VLM.TimeoutSeconds <= 0 {
		c.VLM.TimeoutSeconds = defaultVLMTimeout
	}
	if c.VLM.RetryAttempts <= 0 {
		c.VLM.RetryAttempts = defaultVLMRetryAttempts
	}
}

func (c *Config) apiKeyFromEnv() string {
	keys := []string{"ENTOMO_VLM_API_KEY"}
	switch c.VLM.Provider {
	case ProviderOpenAI:
		keys = append(keys, "OPENROUTER_API_KEY", "OPENAI_API_KEY")
	case ProviderGemini:
		keys = append(keys, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (c *Config) normalizeClassifier() {
	c.Classifier.Endpoint = strings.TrimSpace(c.Classifier.Endpoint)
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTime
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		c.API.Token = strings.TrimSpace(os.Getenv("ENTOMO_API_TOKEN"))
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
