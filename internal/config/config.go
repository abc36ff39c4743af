package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/kelseyhightower/envconfig"

	"github.com/aura-companion/gateway/pkg/logx"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Speech   SpeechConfig
	Relay    RelayConfig
	Store    StoreConfig
	Personas PersonaConfig `envconfig:"PERSONA"`
	Log      logx.Config
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.AI.Provider {
	case ProviderArk, ProviderOpenAI:
	default:
		return fmt.Errorf("invalid AI_PROVIDER value %q", c.AI.Provider)
	}

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverPgx:
	default:
		return fmt.Errorf("invalid STORE_DRIVER value %q", c.Store.Driver)
	}

	if c.Server.MaxSessions < 1 {
		return fmt.Errorf("invalid SERVER_MAX_SESSIONS value %d", c.Server.MaxSessions)
	}
	if c.Server.QueueDepth < 1 {
		c.Server.QueueDepth = 1
	}
	if c.AI.MemoryLimit < 2 {
		c.AI.MemoryLimit = 2
	}
	return nil
}

// ServerConfig 描述 HTTP 服务与会话调度配置。
type ServerConfig struct {
	Port                string        `envconfig:"PORT" default:"8080"`
	MaxSessions         int           `split_words:"true" default:"1024"`
	QueueDepth          int           `split_words:"true" default:"8"`
	CollaboratorTimeout time.Duration `split_words:"true" default:"30s"`
	IdleTimeout         time.Duration `split_words:"true" default:"60s"`

	Addr string `ignored:"true"`
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// 支持的大模型提供方。
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string   `default:"openai"`
	Model       string   `default:"gpt-4o-mini"`
	Temperature *float32 `default:"0.7"`
	TopP        *float32 `split_words:"true"`
	MaxTokens   *int     `split_words:"true"`
	MemoryLimit int      `split_words:"true" default:"20"`

	DocsDir      string `split_words:"true"`
	RetrieveTopK int    `split_words:"true" default:"3"`

	APIKey    string `envconfig:"ARK_API_KEY"`
	AccessKey string `envconfig:"ARK_ACCESS_KEY"`
	SecretKey string `envconfig:"ARK_SECRET_KEY"`
	BaseURL   string `envconfig:"ARK_BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `envconfig:"ARK_REGION" default:"cn-beijing"`

	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL"`
	Timeout       time.Duration `default:"30s"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if strings.TrimSpace(c.Model) == "" {
		return false
	}
	switch c.Provider {
	case ProviderArk:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	case ProviderOpenAI:
		return c.OpenAIAPIKey != ""
	default:
		return false
	}
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失", c.Provider)
	}

	if c.Provider == ProviderOpenAI {
		cfg := &openaimodel.ChatModelConfig{
			APIKey:      strings.TrimSpace(c.OpenAIAPIKey),
			BaseURL:     strings.TrimRight(c.OpenAIBaseURL, "/"),
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
			TopP:        c.TopP,
			Timeout:     c.Timeout,
		}
		return openaimodel.NewChatModel(ctx, cfg)
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
	}
	return ark.NewChatModel(ctx, cfg)
}

// SpeechConfig 描述语音识别与合成配置（OpenAI Audio API）。
type SpeechConfig struct {
	APIKey   string `envconfig:"OPENAI_API_KEY"`
	BaseURL  string `envconfig:"OPENAI_BASE_URL"`
	STTModel string `envconfig:"STT_MODEL" default:"whisper-1"`
	TTSModel string `envconfig:"TTS_MODEL" default:"tts-1"`
	TTSVoice string `envconfig:"TTS_VOICE" default:"alloy"`
	Language string `default:"en"`
}

// Enabled 表示是否可以调用真实的语音服务。
func (c SpeechConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// RelayConfig 描述实时语音转发的上游配置。
type RelayConfig struct {
	URL              string        `default:"wss://api.openai.com/v1/realtime"`
	Model            string        `default:"gpt-4o-realtime-preview"`
	Language         string        `default:"English"`
	APIKey           string        `envconfig:"OPENAI_API_KEY"`
	DialRetries      int           `split_words:"true" default:"3"`
	HandshakeTimeout time.Duration `split_words:"true" default:"10s"`
}

// Enabled 表示转发模式是否可用。
func (c RelayConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.APIKey) != ""
}

// 支持的会话记录存储驱动。
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

// StoreConfig 描述会话记录存储。
type StoreConfig struct {
	Driver string `default:"memory"`
	DSN    string `default:"data/aura.db"`
}

// PersonaConfig 描述角色种子文件。
type PersonaConfig struct {
	File  string
	Watch bool `default:"false"`
}
