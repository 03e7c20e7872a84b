package config

const (
	defaultConfigPath       = "~/.config/entomo/config.toml"
	defaultDataDir          = "~/.local/share/entomo"
	defaultLogDir           = "~/.local/share/entomo/logs"
	defaultKnowledgeFile    = "~/.local/share/entomo/enhanced_visual_knowledge.json"
	defaultClassIndexFile   = "~/.local/share/entomo/subset_class_to_idx.json"
	defaultHistoryDB        = "~/.local/share/entomo/history.db"
	defaultThreshold        = 70.0
	defaultTopK             = 5
	defaultSecondaryTimeout = 120
	defaultVLMProvider      = ProviderOpenAI
	defaultOpenAIBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenAIModel      = "qwen/qwen2.5-vl-72b-instruct"
	defaultGeminiModel      = "gemini-2.5-flash"
	defaultVLMReferer       = "https://github.com/entomo/entomo"
	defaultVLMTitle         = "entomo"
	defaultVLMTimeout       = 90
	defaultVLMRetryAttempts = 1
	defaultClassifierTime   = 15
	defaultAPIBind          = "127.0.0.1:7490"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Supported vision-language model providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:        defaultDataDir,
			LogDir:         defaultLogDir,
			KnowledgeFile:  defaultKnowledgeFile,
			ClassIndexFile: defaultClassIndexFile,
			HistoryDB:      defaultHistoryDB,
		},
		Cascade: Cascade{
			Threshold:               defaultThreshold,
			TopK:                    defaultTopK,
			SecondaryTimeoutSeconds: defaultSecondaryTimeout,
		},
		VLM: VLM{
			Provider:       defaultVLMProvider,
			Referer:        defaultVLMReferer,
			Title:          defaultVLMTitle,
			TimeoutSeconds: defaultVLMTimeout,
			RetryAttempts:  defaultVLMRetryAttempts,
		},
		Classifier: Classifier{
			TimeoutSeconds: defaultClassifierTime,
		},
		API: API{
			Bind:           defaultAPIBind,
			Metrics:        true,
			WatchKnowledge: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
