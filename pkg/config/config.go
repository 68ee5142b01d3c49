package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Transport TransportConfig `mapstructure:"transport"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Fabric    FabricConfig    `mapstructure:"fabric"`
	Agent     AgentConfig     `mapstructure:"agent"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type TransportConfig struct {
	// Kind selects the conversation surface: "http" or "telegram".
	Kind string `mapstructure:"kind"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// FabricConfig carries the service-principal credentials plus the two SQL
// endpoints: the runtime database (history, configuration) and the lakehouse
// the generated queries run against.
type FabricConfig struct {
	TenantID          string `mapstructure:"tenant_id"`
	ClientID          string `mapstructure:"client_id"`
	ClientSecret      string `mapstructure:"client_secret"`
	SQLServer         string `mapstructure:"sql_server"`
	Database          string `mapstructure:"database"`
	LakehouseServer   string `mapstructure:"lakehouse_server"`
	LakehouseDatabase string `mapstructure:"lakehouse_database"`
}

type AgentConfig struct {
	HistoryLimit       int           `mapstructure:"history_limit"`
	HistoryMaxAge      time.Duration `mapstructure:"history_max_age"`
	TypingInterval     time.Duration `mapstructure:"typing_interval"`
	QueryTimeout       time.Duration `mapstructure:"query_timeout"`
	WaitingPrompt      string        `mapstructure:"waiting_prompt"`
	UseInMemoryHistory bool          `mapstructure:"use_in_memory_history"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.addr", ":3978")
	v.SetDefault("transport.kind", "http")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 2048)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("agent.history_limit", 10)
	v.SetDefault("agent.history_max_age", 20*time.Minute)
	v.SetDefault("agent.typing_interval", time.Second)
	v.SetDefault("agent.query_timeout", 8*time.Minute)
	v.SetDefault("agent.waiting_prompt",
		"You are a playful assistant. In at most fifteen words, reassure the user that their data is being looked up. Never repeat a previous waiting message.")
	v.SetDefault("agent.use_in_memory_history", false)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Secrets may come from the environment instead of the file
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if secret := v.GetString("FABRIC_CLIENT_SECRET"); secret != "" {
		config.Fabric.ClientSecret = secret
	}

	switch config.Transport.Kind {
	case "http", "telegram":
	default:
		return nil, fmt.Errorf("unknown transport kind %q", config.Transport.Kind)
	}

	return &config, nil
}
