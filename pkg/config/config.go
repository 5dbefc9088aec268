package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey    string
	OpenAIAPIKey       string
	GoogleAPIKey       string
	MoonshotAPIKey     string
	OllamaBaseURL      string
	OllamaDefaultModel string
	OllamaJudgeModel   string
	ListenAddr         string
	LogLevel           string
	ConfigDir          string
}

// FileConfig represents the structure of ~/.chatgate/config.yaml
type FileConfig struct {
	APIKeys APIKeysConfig `yaml:"api_keys"`
	Ollama  OllamaConfig  `yaml:"ollama"`
	Listen  string        `yaml:"listen"`
	LogLevel string       `yaml:"log_level"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
	Moonshot  string `yaml:"moonshot"`
}

// OllamaConfig holds local runtime settings from file.
type OllamaConfig struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	JudgeModel   string `yaml:"judge_model"`
}

// Load reads configuration from the config file and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey:    getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:       getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:       getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		MoonshotAPIKey:     getEnvOrDefault("MOONSHOT_API_KEY", fileConfig.APIKeys.Moonshot),
		OllamaBaseURL:      getEnvOrDefault("OLLAMA_BASE_URL", fileConfig.Ollama.BaseURL),
		OllamaDefaultModel: getEnvOrDefault("CHATGATE_LOCAL_MODEL", fileConfig.Ollama.DefaultModel),
		OllamaJudgeModel:   getEnvOrDefault("CHATGATE_JUDGE_MODEL", fileConfig.Ollama.JudgeModel),
		ListenAddr:         getEnvOrDefault("CHATGATE_LISTEN", fileConfig.Listen),
		LogLevel:           getEnvOrDefault("CHATGATE_LOG_LEVEL", fileConfig.LogLevel),
		ConfigDir:          configDir,
	}

	if cfg.OllamaBaseURL == "" {
		cfg.OllamaBaseURL = "http://localhost:11434"
	}
	if cfg.OllamaDefaultModel == "" {
		cfg.OllamaDefaultModel = "llama3:latest"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8001"
	}

	return cfg, nil
}

// RoutingPath returns the location of the persisted routing overrides file.
func (c *Config) RoutingPath() string {
	return filepath.Join(c.ConfigDir, "routing.json")
}

// HasAdapter returns true if the API key for the given provider is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "moonshot":
		return c.MoonshotAPIKey != ""
	case "ollama":
		return true
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg)
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".chatgate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
