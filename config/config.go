package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/angeloszaimis/roundrobin-proxy/internal/backend"
	"github.com/angeloszaimis/roundrobin-proxy/internal/proxyerr"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DefaultProxyAddress   = "0.0.0.0:9999"
	DefaultMetricsAddress = "0.0.0.0:6192"
)

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
}

type ListenerConfig struct {
	Address string `mapstructure:"address"`
}

type UpstreamConfig struct {
	ConnectTimeout  string `mapstructure:"connect_timeout"`
	ResponseTimeout string `mapstructure:"response_timeout"`
	RequestTimeout  string `mapstructure:"request_timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Upstreams string         `mapstructure:"upstreams"`
	Server    ServerConfig   `mapstructure:"server"`
	Proxy     ListenerConfig `mapstructure:"proxy"`
	Metrics   ListenerConfig `mapstructure:"metrics"`
	Upstream  UpstreamConfig `mapstructure:"upstream"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// Load reads config.yaml from ./config or the working directory, if present,
// and applies environment overrides. UPSTREAMS is required.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("proxy.address", DefaultProxyAddress)
	v.SetDefault("metrics.address", DefaultMetricsAddress)
	v.SetDefault("upstream.connect_timeout", "5s")
	v.SetDefault("upstream.response_timeout", "30s")
	v.SetDefault("upstream.request_timeout", "60s")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("upstreams", "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", proxyerr.ErrConfiguration, err)
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", proxyerr.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", proxyerr.ErrConfiguration, err)
	}

	return &cfg, nil
}

// UpstreamAddresses returns the validated upstream list in configuration order.
func (c *Config) UpstreamAddresses() ([]string, error) {
	return ParseUpstreams(c.Upstreams)
}

func (c *Config) ConnectTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Upstream.ConnectTimeout)
	return d
}

func (c *Config) ResponseTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Upstream.ResponseTimeout)
	return d
}

// RequestTimeout bounds a whole upstream exchange, including streaming the
// response body.
func (c *Config) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Upstream.RequestTimeout)
	return d
}

// ParseUpstreams splits a comma-separated host:port list. Whitespace around
// entries and empty entries are ignored; every remaining entry must be valid.
func ParseUpstreams(raw string) ([]string, error) {
	var addresses []string

	for _, part := range strings.Split(raw, ",") {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}

		if _, err := backend.Parse(addr); err != nil {
			return nil, err
		}

		addresses = append(addresses, addr)
	}

	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: no upstreams configured", proxyerr.ErrConfiguration)
	}

	return addresses, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Upstreams,
			validation.Required.Error("at least one upstream is required"),
			validation.By(validateUpstreams),
		),
		validation.Field(&c.Server,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
				)
			}),
		),
		validation.Field(&c.Proxy, validation.By(validateListener)),
		validation.Field(&c.Metrics, validation.By(validateListener)),
		validation.Field(&c.Upstream,
			validation.By(func(value interface{}) error {
				uc, ok := value.(UpstreamConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an UpstreamConfig")
				}
				return validation.ValidateStruct(&uc,
					validation.Field(&uc.ConnectTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&uc.ResponseTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&uc.RequestTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
	)
}

func validateUpstreams(value interface{}) error {
	raw, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := ParseUpstreams(raw); err != nil {
		return validation.NewError("validation_invalid_upstreams", err.Error())
	}

	return nil
}

func validateListener(value interface{}) error {
	lc, ok := value.(ListenerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a ListenerConfig")
	}
	return validation.ValidateStruct(&lc,
		validation.Field(&lc.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if err := is.Port.Validate(port); err != nil || port == "" {
		return validation.NewError("validation_invalid_port", "must be a valid port")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}
