package config

import (
	"errors"
	"fmt"
	"gatebot/internal/exchange"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	MainnetDomain   = "api.gateio.ws"
	MainnetWSDomain = "fx-ws.gateio.ws"
	TestnetDomain   = "fx-api-testnet.gateio.ws"
	TestnetWSDomain = "fx-ws-testnet.gateio.ws"
)

type Config struct {
	Exchange  ExchangeConfig
	Stream    StreamConfig
	Runtime   RuntimeConfig
	Telemetry TelemetryConfig
}

type ExchangeConfig struct {
	Domain    string
	Prefix    string
	WSDomain  string
	Settle    string
	ApiKey    string
	Secret    string
	Debug     bool
	Testnet   bool
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

type StreamConfig struct {
	Channel             string
	Subscriptions       []exchange.Subscription
	HeartbeatInterval   time.Duration
	ResubscribeInterval time.Duration
	RetryDelay          time.Duration
	MaxRetryDelay       time.Duration
	MaxRetryAttempts    int
	QueueSize           int
	IdleTimeout         time.Duration
	HandshakeTimeout    time.Duration
	WriteTimeout        time.Duration
}

type RuntimeConfig struct {
	Log LogConfig
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type TelemetryConfig struct {
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string
	Interval     time.Duration
}

// Load читает configs/config.yaml (или файл из paths), переменные окружения GATE_* перекрывают файл.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("GATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Не удалось прочитать конфигурацию: %w", err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("exchange.prefix", "/api/v4")
	v.SetDefault("exchange.settle", "usdt")
	v.SetDefault("exchange.timeout", 15*time.Second)
	v.SetDefault("exchange.rate_burst", 1)

	v.SetDefault("stream.channel", "futures.candlesticks")
	v.SetDefault("stream.heartbeat_interval", 20*time.Second)
	v.SetDefault("stream.resubscribe_interval", 60*time.Second)
	v.SetDefault("stream.retry_delay", 5*time.Second)
	v.SetDefault("stream.max_retry_delay", 60*time.Second)
	v.SetDefault("stream.max_retry_attempts", 10)
	v.SetDefault("stream.queue_size", 100)
	v.SetDefault("stream.idle_timeout", 90*time.Second)
	v.SetDefault("stream.handshake_timeout", 10*time.Second)
	v.SetDefault("stream.write_timeout", 10*time.Second)

	v.SetDefault("runtime.log.level", "info")
	v.SetDefault("runtime.log.format", "text")
	v.SetDefault("runtime.log.max_size", 100)
	v.SetDefault("runtime.log.max_backups", 5)
	v.SetDefault("runtime.log.max_age", 30)

	v.SetDefault("telemetry.service_name", "gatebot")
	v.SetDefault("telemetry.interval", 30*time.Second)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Exchange = ExchangeConfig{
		Domain:    v.GetString("exchange.domain"),
		Prefix:    v.GetString("exchange.prefix"),
		WSDomain:  v.GetString("exchange.ws_domain"),
		Settle:    strings.ToLower(v.GetString("exchange.settle")),
		ApiKey:    envSub(v, "exchange.api_key"),
		Secret:    envSub(v, "exchange.secret"),
		Debug:     v.GetBool("exchange.debug"),
		Testnet:   v.GetBool("exchange.testnet"),
		Timeout:   v.GetDuration("exchange.timeout"),
		RateLimit: v.GetFloat64("exchange.rate_limit"),
		RateBurst: v.GetInt("exchange.rate_burst"),
	}

	if cfg.Exchange.Domain == "" {
		cfg.Exchange.Domain = MainnetDomain
		if cfg.Exchange.Testnet {
			cfg.Exchange.Domain = TestnetDomain
		}
	}
	if cfg.Exchange.WSDomain == "" {
		cfg.Exchange.WSDomain = MainnetWSDomain
		if cfg.Exchange.Testnet {
			cfg.Exchange.WSDomain = TestnetWSDomain
		}
	}

	var subs []exchange.Subscription
	if err := v.UnmarshalKey("stream.subscriptions", &subs); err != nil {
		return nil, fmt.Errorf("Некорректный список подписок: %w", err)
	}
	if len(subs) == 0 {
		subs = []exchange.Subscription{{Interval: "1m", Symbol: "BTC_USDT"}}
	}

	cfg.Stream = StreamConfig{
		Channel:             v.GetString("stream.channel"),
		Subscriptions:       subs,
		HeartbeatInterval:   v.GetDuration("stream.heartbeat_interval"),
		ResubscribeInterval: v.GetDuration("stream.resubscribe_interval"),
		RetryDelay:          v.GetDuration("stream.retry_delay"),
		MaxRetryDelay:       v.GetDuration("stream.max_retry_delay"),
		MaxRetryAttempts:    v.GetInt("stream.max_retry_attempts"),
		QueueSize:           v.GetInt("stream.queue_size"),
		IdleTimeout:         v.GetDuration("stream.idle_timeout"),
		HandshakeTimeout:    v.GetDuration("stream.handshake_timeout"),
		WriteTimeout:        v.GetDuration("stream.write_timeout"),
	}

	cfg.Runtime = RuntimeConfig{
		Log: LogConfig{
			Level:      v.GetString("runtime.log.level"),
			Format:     v.GetString("runtime.log.format"),
			File:       v.GetString("runtime.log.file"),
			MaxSize:    v.GetInt("runtime.log.max_size"),
			MaxBackups: v.GetInt("runtime.log.max_backups"),
			MaxAge:     v.GetInt("runtime.log.max_age"),
			Compress:   v.GetBool("runtime.log.compress"),
		},
	}

	cfg.Telemetry = TelemetryConfig{
		OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
		Insecure:     v.GetBool("telemetry.insecure"),
		ServiceName:  v.GetString("telemetry.service_name"),
		Interval:     v.GetDuration("telemetry.interval"),
	}

	return cfg, nil
}

// Validate собирает все ошибки конфигурации разом.
func (c *Config) Validate() error {
	var errs []string

	if c.Exchange.Domain == "" {
		errs = append(errs, "exchange.domain: не задан домен REST API")
	}
	if c.Exchange.WSDomain == "" {
		errs = append(errs, "exchange.ws_domain: не задан домен WS")
	}
	if c.Exchange.Settle == "" {
		errs = append(errs, "exchange.settle: не задана валюта расчёта")
	}
	if (c.Exchange.ApiKey == "") != (c.Exchange.Secret == "") {
		errs = append(errs, "exchange.api_key/exchange.secret: ключ и секрет задаются только вместе")
	}
	if c.Exchange.RateLimit < 0 {
		errs = append(errs, "exchange.rate_limit: не может быть отрицательным")
	}

	for i, sub := range c.Stream.Subscriptions {
		if sub.Interval == "" || sub.Symbol == "" {
			errs = append(errs, fmt.Sprintf("stream.subscriptions[%d]: нужны interval и symbol", i))
		}
	}
	if c.Stream.HeartbeatInterval <= 0 {
		errs = append(errs, "stream.heartbeat_interval: должен быть положительным")
	}
	if c.Stream.ResubscribeInterval <= 0 {
		errs = append(errs, "stream.resubscribe_interval: должен быть положительным")
	}
	if c.Stream.RetryDelay <= 0 {
		errs = append(errs, "stream.retry_delay: должна быть положительной")
	}
	if c.Stream.MaxRetryDelay < c.Stream.RetryDelay {
		errs = append(errs, "stream.max_retry_delay: не может быть меньше retry_delay")
	}
	if c.Stream.MaxRetryAttempts <= 0 {
		errs = append(errs, "stream.max_retry_attempts: должно быть положительным")
	}
	if c.Stream.QueueSize <= 0 {
		errs = append(errs, "stream.queue_size: должен быть положительным")
	}
	if c.Stream.IdleTimeout < 0 {
		errs = append(errs, "stream.idle_timeout: не может быть отрицательным, 0 отключает")
	}

	switch strings.ToLower(c.Runtime.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("runtime.log.format: неизвестный формат %q, допустимо text или json", c.Runtime.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("Ошибки конфигурации:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

var envPattern = regexp.MustCompile(`\$\{(\w+)\}`)

func envSub(v *viper.Viper, key string) string {
	val := v.GetString(key)
	if val == "" {
		return ""
	}

	return envPattern.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
