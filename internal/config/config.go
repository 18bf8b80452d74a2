package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 上游提供方名称。
const (
	ProviderGemini     = "gemini"
	ProviderPerplexity = "perplexity"
	ProviderArk        = "ark"
)

// 生成参数默认值：低随机性、有限输出长度。
const (
	DefaultTemperature = 0.2
	DefaultTopP        = 0.9
	DefaultMaxTokens   = 800
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Provider  ProviderConfig
	RateLimit RateLimitConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	provider, err := loadProviderConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Provider: provider, RateLimit: rateLimit}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ProviderConfig 描述所选上游大模型提供方。
// 每个部署只能选择一个提供方。
type ProviderConfig struct {
	Name        string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Timeout     time.Duration
}

// HasCredential 表示是否提供了调用上游所需的密钥。
func (c ProviderConfig) HasCredential() bool {
	if c.APIKey != "" {
		return true
	}
	return c.Name == ProviderArk && c.AccessKey != "" && c.SecretKey != ""
}

// DisplayName 返回用于错误信息的提供方名称。
func (c ProviderConfig) DisplayName() string {
	switch c.Name {
	case ProviderGemini:
		return "Gemini"
	case ProviderPerplexity:
		return "Perplexity"
	case ProviderArk:
		return "Ark"
	default:
		return c.Name
	}
}

func loadProviderConfig() (ProviderConfig, error) {
	name := strings.ToLower(getEnvOrDefault("HEALTHCHAT_PROVIDER", ProviderGemini))

	temperature, err := parseFloatEnv("HEALTHCHAT_TEMPERATURE", DefaultTemperature)
	if err != nil {
		return ProviderConfig{}, err
	}

	topP, err := parseFloatEnv("HEALTHCHAT_TOP_P", DefaultTopP)
	if err != nil {
		return ProviderConfig{}, err
	}

	maxTokens := DefaultMaxTokens
	if override, err := parseOptionalIntEnv("HEALTHCHAT_MAX_TOKENS"); err != nil {
		return ProviderConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ProviderConfig{}, fmt.Errorf("invalid HEALTHCHAT_MAX_TOKENS value %d: must be positive", *override)
		}
		maxTokens = *override
	}

	timeout := 60 * time.Second
	if override, err := parseOptionalIntEnv("HEALTHCHAT_UPSTREAM_TIMEOUT"); err != nil {
		return ProviderConfig{}, err
	} else if override != nil && *override > 0 {
		timeout = time.Duration(*override) * time.Second
	}

	cfg := ProviderConfig{
		Name:        name,
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}

	switch name {
	case ProviderGemini:
		cfg.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		cfg.Model = getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash-latest")
		cfg.BaseURL = getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	case ProviderPerplexity:
		cfg.APIKey = strings.TrimSpace(os.Getenv("PERPLEXITY_API_KEY"))
		cfg.Model = getEnvOrDefault("PERPLEXITY_MODEL", "sonar")
		cfg.BaseURL = getEnvOrDefault("PERPLEXITY_BASE_URL", "https://api.perplexity.ai")
	case ProviderArk:
		cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Model = strings.TrimSpace(os.Getenv("ARK_MODEL"))
		cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
		if cfg.Model == "" {
			return ProviderConfig{}, fmt.Errorf("ARK_MODEL is required when HEALTHCHAT_PROVIDER=ark")
		}
	default:
		return ProviderConfig{}, fmt.Errorf("invalid HEALTHCHAT_PROVIDER value %q: want gemini, perplexity or ark", name)
	}

	return cfg, nil
}

// RateLimitConfig 描述按客户端 IP 的限流配置，RPS 为 0 表示关闭。
// TrustProxyHeaders 为 true 时才从 X-Forwarded-For / X-Real-IP 取客户端地址，
// 仅应在可信反向代理之后开启，否则客户端可伪造地址绕过限流。
type RateLimitConfig struct {
	RPS               float64
	Burst             int
	TrustProxyHeaders bool
}

// Enabled 表示是否开启限流。
func (c RateLimitConfig) Enabled() bool {
	return c.RPS > 0
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	rps, err := parseFloatEnv("RATE_LIMIT_RPS", 0)
	if err != nil {
		return RateLimitConfig{}, err
	}
	if rps < 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid RATE_LIMIT_RPS value %v: must not be negative", rps)
	}

	burst := 5
	if override, err := parseOptionalIntEnv("RATE_LIMIT_BURST"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil && *override > 0 {
		burst = *override
	}

	trust := false
	if raw := strings.TrimSpace(os.Getenv("TRUST_PROXY_HEADERS")); raw != "" {
		trust, err = strconv.ParseBool(raw)
		if err != nil {
			return RateLimitConfig{}, fmt.Errorf("invalid TRUST_PROXY_HEADERS value %q: %w", raw, err)
		}
	}

	return RateLimitConfig{RPS: rps, Burst: burst, TrustProxyHeaders: trust}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	val, err := parseOptionalFloatEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
