package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort     string        `mapstructure:"server_port"`
	AWSRegion      string        `mapstructure:"aws_region"`
	OpenAIAPIKey   string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL  string        `mapstructure:"openai_base_url"`
	Model          string        `mapstructure:"openai_model"`
	SecretName     string        `mapstructure:"secret_name"`
	SecretFormat   string        `mapstructure:"secret_format"`
	ParameterName  string        `mapstructure:"parameter_name"`
	MaxDuration    time.Duration `mapstructure:"max_duration"`
	VerboseErrors  bool          `mapstructure:"verbose_errors"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RateLimitRPM   int           `mapstructure:"rate_limit_rpm"`
	BreakerEnabled bool          `mapstructure:"breaker_enabled"`
	LogLevel       string        `mapstructure:"log_level"`
	TracingEnabled bool          `mapstructure:"tracing_enabled"`
	// TrustedProxies are the IPs/CIDRs whose X-Forwarded-For is believed.
	// Empty means the socket peer is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

var defaults = map[string]any{
	"server_port":     "8080",
	"aws_region":      "us-east-1",
	"openai_api_key":  "",
	"openai_base_url": "https://api.openai.com/v1",
	"openai_model":    "gpt-4o",
	"secret_name":     "openai-api-key",
	"secret_format":   "json",
	"parameter_name":  "/amplify/shared/OPENAI_API_KEY",
	"max_duration":    "30s",
	"verbose_errors":  true,
	"redis_addr":      "",
	"redis_password":  "",
	"rate_limit_rpm":  60,
	"breaker_enabled": false,
	"log_level":       "info",
	"tracing_enabled": false,
	"trusted_proxies": []string{},
}

// LoadConfig reads defaults, then the optional YAML file at path, then the
// environment. Keys map to upper-case env vars (server_port -> SERVER_PORT).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return errors.New("config: server_port must not be empty")
	}
	if c.Model == "" {
		return errors.New("config: openai_model must not be empty")
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("config: max_duration must be positive, got %s", c.MaxDuration)
	}
	switch c.SecretFormat {
	case "json", "plain":
	default:
		return fmt.Errorf("config: secret_format must be json or plain, got %q", c.SecretFormat)
	}
	for _, p := range c.TrustedProxies {
		if !validProxy(p) {
			return fmt.Errorf("config: trusted_proxies entry %q is not an IP or CIDR", p)
		}
	}
	if c.RateLimitRPM < 0 {
		return fmt.Errorf("config: rate_limit_rpm must not be negative, got %d", c.RateLimitRPM)
	}
	return nil
}

// RateLimitEnabled reports whether a Redis backend is configured for the
// per-client request limit.
func (c *Config) RateLimitEnabled() bool {
	return c.RedisAddr != "" && c.RateLimitRPM > 0
}

func validProxy(p string) bool {
	if strings.Contains(p, "/") {
		_, _, err := net.ParseCIDR(p)
		return err == nil
	}
	return net.ParseIP(p) != nil
}
