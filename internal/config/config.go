package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`

	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`

	Media struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"media"`

	Stream struct {
		// SubscriberBuffer is the per-subscriber event buffer; a full
		// buffer counts as a failed delivery and drops the subscriber.
		SubscriberBuffer int `mapstructure:"subscriber_buffer"`
		// HandshakeTimeout bounds how long a subscriber may take to
		// establish its connection before it counts as not connected.
		HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	} `mapstructure:"stream"`

	Notify struct {
		// MaxPending caps each user's stored notification set; the oldest
		// entries are evicted first.
		MaxPending int `mapstructure:"max_pending"`
	} `mapstructure:"notify"`

	Auth struct {
		OktaDomain   string `mapstructure:"okta_domain"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
	} `mapstructure:"auth"`

	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// LoadConfig loads the configuration from a file and the environment.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("environment", "DEV")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("stream.subscriber_buffer", 16)
	viper.SetDefault("stream.handshake_timeout", 10*time.Second)
	viper.SetDefault("notify.max_pending", 100)

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine; everything can come from the
		// environment and the defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Auth.OktaDomain = normalizeIssuer(config.Auth.OktaDomain)

	return &config, nil
}

// normalizeIssuer ensures the provided OIDC issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact, so users can paste the full URL from the admin console.
func normalizeIssuer(input string) string {
	iss := strings.TrimSpace(input)
	if strings.HasSuffix(iss, "/") {
		iss = strings.TrimRight(iss, "/")
	}
	return iss
}
