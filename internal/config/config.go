package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "SOCIAL"
	defaultHTTPAddress     = "0.0.0.0:8083"
	defaultGRPCAddress     = "0.0.0.0:9083"
	defaultLogLevel        = "info"
	defaultAMQPExchange    = "social.events"
	defaultTokenIssuer     = "social-auth"
	defaultTokenAudience   = "social-api"
	defaultTokenTTL        = 30 * time.Minute
	defaultServiceName     = "social-service"
	defaultEnvironment     = "development"
	defaultRelationsTTL    = 5 * time.Minute
	defaultPageSize        = 20
	defaultMobilePageSize  = 10
	defaultMaxPageSize     = 100
	defaultPingPeriod      = 54 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultMaxMessageBytes = 64 * 1024
	defaultEventsPerSecond = 20
	defaultEventBurst      = 40
	defaultSendBuffer      = 64
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	ServiceName        string
	Environment        string
	DebugRoutes        bool
	HTTPAddress        string
	GRPCAddress        string
	DatabaseDSN        string
	RedisAddress       string
	AMQPURL            string
	AMQPExchange       string
	OTelEndpoint       string
	LogLevel           string
	CORSAllowedOrigins []string
	AdminAccountIDs    []int

	Auth AuthConfig
	Feed FeedConfig
	WS   WSConfig
}

// AuthConfig configures HS256 token validation.
type AuthConfig struct {
	SigningSecret string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
}

// FeedConfig tunes candidate selection and paging of the ranked feed.
type FeedConfig struct {
	RelationsTTL    time.Duration
	DefaultPageSize int
	MobilePageSize  int
	MaxPageSize     int
}

// WSConfig tunes websocket connection liveness and inbound limits.
type WSConfig struct {
	PingPeriod      time.Duration
	IdleTimeout     time.Duration
	MaxMessageBytes int64
	EventsPerSecond float64
	EventBurst      int
	SendBuffer      int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("service.name", defaultServiceName)
	configViper.SetDefault("service.environment", defaultEnvironment)
	configViper.SetDefault("debug.enabled", false)
	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("grpc.address", defaultGRPCAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("amqp.exchange", defaultAMQPExchange)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
	configViper.SetDefault("auth.issuer", defaultTokenIssuer)
	configViper.SetDefault("auth.audience", defaultTokenAudience)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("feed.relations_ttl", defaultRelationsTTL)
	configViper.SetDefault("feed.default_page_size", defaultPageSize)
	configViper.SetDefault("feed.mobile_page_size", defaultMobilePageSize)
	configViper.SetDefault("feed.max_page_size", defaultMaxPageSize)
	configViper.SetDefault("ws.ping_period", defaultPingPeriod)
	configViper.SetDefault("ws.idle_timeout", defaultIdleTimeout)
	configViper.SetDefault("ws.max_message_bytes", defaultMaxMessageBytes)
	configViper.SetDefault("ws.events_per_second", defaultEventsPerSecond)
	configViper.SetDefault("ws.event_burst", defaultEventBurst)
	configViper.SetDefault("ws.send_buffer", defaultSendBuffer)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		ServiceName:        configViper.GetString("service.name"),
		Environment:        configViper.GetString("service.environment"),
		DebugRoutes:        configViper.GetBool("debug.enabled"),
		HTTPAddress:        configViper.GetString("http.address"),
		GRPCAddress:        configViper.GetString("grpc.address"),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		RedisAddress:       configViper.GetString("redis.address"),
		AMQPURL:            configViper.GetString("amqp.url"),
		AMQPExchange:       configViper.GetString("amqp.exchange"),
		OTelEndpoint:       configViper.GetString("otel.endpoint"),
		LogLevel:           configViper.GetString("log.level"),
		CORSAllowedOrigins: configViper.GetStringSlice("cors.allowed_origins"),
		Auth: AuthConfig{
			SigningSecret: configViper.GetString("auth.signing_secret"),
			Issuer:        configViper.GetString("auth.issuer"),
			Audience:      configViper.GetString("auth.audience"),
			TokenTTL:      configViper.GetDuration("auth.token_ttl"),
		},
		Feed: FeedConfig{
			RelationsTTL:    configViper.GetDuration("feed.relations_ttl"),
			DefaultPageSize: configViper.GetInt("feed.default_page_size"),
			MobilePageSize:  configViper.GetInt("feed.mobile_page_size"),
			MaxPageSize:     configViper.GetInt("feed.max_page_size"),
		},
		WS: WSConfig{
			PingPeriod:      configViper.GetDuration("ws.ping_period"),
			IdleTimeout:     configViper.GetDuration("ws.idle_timeout"),
			MaxMessageBytes: configViper.GetInt64("ws.max_message_bytes"),
			EventsPerSecond: configViper.GetFloat64("ws.events_per_second"),
			EventBurst:      configViper.GetInt("ws.event_burst"),
			SendBuffer:      configViper.GetInt("ws.send_buffer"),
		},
	}

	adminIDs, err := parseAccountIDs(configViper.GetStringSlice("admin.account_ids"))
	if err != nil {
		return AppConfig{}, err
	}
	cfg.AdminAccountIDs = adminIDs

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if strings.TrimSpace(c.Auth.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.Feed.MaxPageSize <= 0 || c.Feed.DefaultPageSize <= 0 || c.Feed.MobilePageSize <= 0 {
		return fmt.Errorf("feed page sizes must be positive")
	}
	if c.Feed.DefaultPageSize > c.Feed.MaxPageSize || c.Feed.MobilePageSize > c.Feed.MaxPageSize {
		return fmt.Errorf("feed page sizes must not exceed feed.max_page_size")
	}
	if c.WS.PingPeriod <= 0 || c.WS.IdleTimeout <= c.WS.PingPeriod {
		return fmt.Errorf("ws.idle_timeout must exceed ws.ping_period")
	}
	if c.WS.MaxMessageBytes <= 0 {
		return fmt.Errorf("ws.max_message_bytes must be positive")
	}
	if c.WS.EventsPerSecond <= 0 || c.WS.EventBurst <= 0 {
		return fmt.Errorf("ws rate limit must be positive")
	}
	return nil
}

// IsAdmin reports whether the account may publish global notifications.
func (c AppConfig) IsAdmin(accountID int) bool {
	for _, id := range c.AdminAccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}

// parseAccountIDs accepts ids as list entries or comma separated values, so both
// config files and SOCIAL_ADMIN_ACCOUNT_IDS="1,2" work.
func parseAccountIDs(values []string) ([]int, error) {
	var ids []int
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("admin.account_ids: invalid id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
