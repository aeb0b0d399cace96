package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"reunite/pkg/domain"
	platformstrings "reunite/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	HospitalID    domain.HospitalID
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	MQTT         MQTTConfig
	Neo4j        Neo4jConfig
	Sync         SyncConfig
	Delivery     DeliveryConfig
	Match        MatchConfig
	Integrations IntegrationsConfig

	// AutoTransferOnReidentify treats identification at a different hospital
	// as a transfer. When false such identifications are rejected with a
	// conflict and an explicit transfer is required.
	AutoTransferOnReidentify bool
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers        []string
	Topic          string
	PublishTimeout time.Duration
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
}

type SyncConfig struct {
	Interval     time.Duration
	MaxBackoff   time.Duration
	MaxRetries   int
	OfflineAfter int
	BatchSize    int
}

type DeliveryConfig struct {
	MaxRetries    int
	SweepInterval time.Duration
}

type MatchConfig struct {
	DistanceThreshold float64
	MaxResults        int
}

type IntegrationsConfig struct {
	SMSGatewayURL    string
	SMSGatewayAPIKey string
	ExtractorURL     string
	DemographicsURL  string
}

const (
	DefaultAddr              = ":8080"
	DefaultSyncInterval      = 30 * time.Second
	DefaultSyncMaxBackoff    = 10 * time.Minute
	DefaultSyncMaxRetries    = 20
	DefaultPeerOfflineAfter  = 5
	DefaultDeliveryRetries   = 5
	DefaultDistanceThreshold = 0.6
	DefaultMaxResults        = 10
	DefaultSyncTopic         = "reunite.sync"
	DefaultPublishTimeout    = 15 * time.Second
	DefaultRadioTopic        = "reunite/radio"
)

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables take precedence over it.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	hospitalID, err := domain.ParseHospitalID(os.Getenv("REUNITE_HOSPITAL_ID"))
	if err != nil {
		return Server{}, fmt.Errorf("REUNITE_HOSPITAL_ID: %w", err)
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in deployment
		jwtSigningKey = "dev-secret-key-change-in-deployment"
	}

	cfg := Server{
		Addr:          getString("REUNITE_ADDR", DefaultAddr),
		HospitalID:    hospitalID,
		JWTSigningKey: jwtSigningKey,
		JWTIssuer:     getString("JWT_ISSUER", "reunite"),
		JWTAudience:   getString("JWT_AUDIENCE", "reunite-console"),
		Database:      DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: platformstrings.DedupeAndTrim(strings.Split(os.Getenv("KAFKA_BROKERS"), ",")),
			Topic:   getString("KAFKA_SYNC_TOPIC", DefaultSyncTopic),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			ClientID: "reunite-" + hospitalID.String(),
			Topic:    getString("MQTT_RADIO_TOPIC", DefaultRadioTopic),
		},
		Neo4j: Neo4jConfig{
			URI:      os.Getenv("NEO4J_URI"),
			Username: os.Getenv("NEO4J_USERNAME"),
			Password: os.Getenv("NEO4J_PASSWORD"),
		},
		Integrations: IntegrationsConfig{
			SMSGatewayURL:    os.Getenv("SMS_GATEWAY_URL"),
			SMSGatewayAPIKey: os.Getenv("SMS_GATEWAY_API_KEY"),
			ExtractorURL:     os.Getenv("EXTRACTOR_URL"),
			DemographicsURL:  os.Getenv("DEMOGRAPHICS_URL"),
		},
	}

	if cfg.Sync.Interval, err = getDuration("SYNC_INTERVAL", DefaultSyncInterval); err != nil {
		return Server{}, err
	}
	if cfg.Sync.MaxBackoff, err = getDuration("SYNC_MAX_BACKOFF", DefaultSyncMaxBackoff); err != nil {
		return Server{}, err
	}
	if cfg.Kafka.PublishTimeout, err = getDuration("KAFKA_PUBLISH_TIMEOUT", DefaultPublishTimeout); err != nil {
		return Server{}, err
	}
	if cfg.Sync.MaxRetries, err = getInt("SYNC_MAX_RETRIES", DefaultSyncMaxRetries); err != nil {
		return Server{}, err
	}
	if cfg.Sync.OfflineAfter, err = getInt("PEER_OFFLINE_AFTER", DefaultPeerOfflineAfter); err != nil {
		return Server{}, err
	}
	cfg.Sync.BatchSize = 100
	if cfg.Delivery.MaxRetries, err = getInt("DELIVERY_MAX_RETRIES", DefaultDeliveryRetries); err != nil {
		return Server{}, err
	}
	cfg.Delivery.SweepInterval = 15 * time.Second
	if cfg.Match.DistanceThreshold, err = getFloat("MATCH_DISTANCE_THRESHOLD", DefaultDistanceThreshold); err != nil {
		return Server{}, err
	}
	cfg.Match.MaxResults = DefaultMaxResults
	if cfg.AutoTransferOnReidentify, err = getBool("AUTO_TRANSFER_ON_REIDENTIFY", true); err != nil {
		return Server{}, err
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid positive integer %q", key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}
