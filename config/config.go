package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"go.yaml.in/yaml/v4"
)

const defaultDatabaseURL = "postgres://localhost:5432/kickboard?sslmode=disable"

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Identity  IdentityConfig  `yaml:"identity"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	AWS       AWSConfig       `yaml:"aws"`
	Sync      SyncConfig      `yaml:"sync"`
}

type DatabaseConfig struct {
	// URL wins over the host fields. DATABASE_URL from the environment wins over both.
	URL         string `yaml:"url"`
	URLSecretID string `yaml:"url_secret_id"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type FirestoreConfig struct {
	Mode            string `yaml:"mode"` // "firestore" | "fake"
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	Collection      string `yaml:"collection"`
	OrderBy         string `yaml:"order_by"`

	// SnapshotFile feeds the fake source. Empty means no documents.
	SnapshotFile string `yaml:"snapshot_file"`
}

type IdentityConfig struct {
	Mode             string `yaml:"mode"` // "http" | "fake"
	FranchiseBaseURL string `yaml:"franchise_base_url"`
	LocationBaseURL  string `yaml:"location_base_url"`

	TokenSecret         string `yaml:"token_secret"`
	TokenSecretID       string `yaml:"token_secret_id"`
	TokenIssuer         string `yaml:"token_issuer"`
	TokenAudience       string `yaml:"token_audience"`
	TokenTTLSeconds     int    `yaml:"token_ttl_seconds"`
	RequestTimeoutMs    int    `yaml:"request_timeout_ms"`
	FranchiseSearch     string `yaml:"franchise_search"`
	RegionSearch        string `yaml:"region_search"`
	DefaultsCacheTTLSec int    `yaml:"defaults_cache_ttl_seconds"`

	FakeFranchiseID string `yaml:"fake_franchise_id"`
	FakeRegionID    string `yaml:"fake_region_id"`
}

type WebhookConfig struct {
	URL                string `yaml:"url"`
	URLSecretID        string `yaml:"url_secret_id"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type KafkaConfig struct {
	Host                      string `yaml:"host"`
	Port                      int    `yaml:"port"`
	KickboardChangedTopicName string `yaml:"kickboard_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
}

type SyncConfig struct {
	ActionTimeoutSeconds int    `yaml:"action_timeout_seconds"`
	HTTPAddr             string `yaml:"http_addr"`
	LogLevel             string `yaml:"log_level"`  // debug | info | warn | error
	LogFormat            string `yaml:"log_format"` // text | json
}

func LoadConfig(filename string) (*Config, error) {
	var config Config
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("FIRESTORE_PROJECT_ID"); v != "" {
		c.Firestore.ProjectID = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Firestore.CredentialsFile == "" {
		c.Firestore.CredentialsFile = v
	}
	if v := os.Getenv("IDENTITY_TOKEN_SECRET"); v != "" {
		c.Identity.TokenSecret = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && c.AWS.Region == "" {
		c.AWS.Region = v
	}
	if v := os.Getenv("SYNC_ACTION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.ActionTimeoutSeconds = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Firestore.Mode == "" {
		c.Firestore.Mode = "firestore"
	}
	if c.Firestore.Collection == "" {
		c.Firestore.Collection = "kick"
	}
	if c.Firestore.OrderBy == "" {
		c.Firestore.OrderBy = "last_update"
	}
	if c.Identity.Mode == "" {
		c.Identity.Mode = "http"
	}
	if c.Identity.TokenIssuer == "" {
		c.Identity.TokenIssuer = "kickboard-sync"
	}
	if c.Identity.TokenTTLSeconds <= 0 {
		c.Identity.TokenTTLSeconds = 300
	}
	if c.Identity.RequestTimeoutMs <= 0 {
		c.Identity.RequestTimeoutMs = 5000
	}
	if c.Webhook.RateLimitPerMinute < 0 {
		c.Webhook.RateLimitPerMinute = 0
	}
	if c.Kafka.KickboardChangedTopicName == "" {
		c.Kafka.KickboardChangedTopicName = "kickboard.changed"
	}
	if c.Sync.ActionTimeoutSeconds <= 0 {
		c.Sync.ActionTimeoutSeconds = 30
	}
	if c.Sync.HTTPAddr == "" {
		c.Sync.HTTPAddr = ":8083"
	}
	if c.Sync.LogLevel == "" {
		c.Sync.LogLevel = "info"
	}
	if c.Sync.LogFormat == "" {
		c.Sync.LogFormat = "text"
	}
}

func (c *Config) validate() error {
	switch c.Firestore.Mode {
	case "firestore":
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore.project_id is required in firestore mode")
		}
	case "fake":
	default:
		return fmt.Errorf("unknown firestore.mode %q", c.Firestore.Mode)
	}

	switch c.Identity.Mode {
	case "http":
		if c.Identity.FranchiseBaseURL == "" || c.Identity.LocationBaseURL == "" {
			return fmt.Errorf("identity.franchise_base_url and identity.location_base_url are required in http mode")
		}
	case "fake":
	default:
		return fmt.Errorf("unknown identity.mode %q", c.Identity.Mode)
	}
	return nil
}

// DatabaseURL returns the connection string from URL, else from the host
// fields, else the local default. Secrets are resolved by the caller.
func (c *Config) DatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	if c.Database.Host == "" {
		return defaultDatabaseURL
	}
	port := c.Database.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Database.Host, strconv.Itoa(port)),
		Path:     "/" + c.Database.DBName,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	if c.Database.Username != "" {
		u.User = url.UserPassword(c.Database.Username, c.Database.Password)
	}
	return u.String()
}

func (c *Config) KafkaEnabled() bool {
	return c.Kafka.Host != ""
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c *Config) KafkaBrokers() []string {
	port := c.Kafka.Port
	if port == 0 {
		port = 9092
	}
	return []string{fmt.Sprintf("%s:%d", c.Kafka.Host, port)}
}

func (c *Config) RedisAddr() string {
	port := c.Redis.Port
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, port)
}
