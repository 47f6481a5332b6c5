package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SensorDataPath string
	EOFeaturesPath string
	AuditLogPath   string
	EventLogPath   string
	ThresholdsPath string

	MatchTolerance   time.Duration
	MatchLimit       int
	FeatureCacheSize int

	// RunInterval repeats the batch pass on a schedule. Zero runs once and exits.
	RunInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka alert publishing configuration.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaAlertTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	tolerance, err := time.ParseDuration(sharedcfg.EnvOrDefault("MATCH_TOLERANCE", "60s"))
	if err != nil || tolerance <= 0 {
		return nil, errors.New("invalid MATCH_TOLERANCE")
	}

	matchLimit, err := strconv.Atoi(sharedcfg.EnvOrDefault("MATCH_LIMIT", "0"))
	if err != nil || matchLimit < 0 {
		return nil, errors.New("invalid MATCH_LIMIT")
	}

	runInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("RUN_INTERVAL", "0s"))
	if err != nil || runInterval < 0 {
		return nil, errors.New("invalid RUN_INTERVAL")
	}

	kafkaEnabled := os.Getenv("KAFKA_BROKERS") != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		SensorDataPath: sharedcfg.EnvOrDefault("SENSOR_DATA_PATH", "data/sensor/simulated.csv"),
		EOFeaturesPath: sharedcfg.EnvOrDefault("EO_FEATURES_PATH", "data/sentinel1/eo_features.csv"),
		AuditLogPath:   sharedcfg.EnvOrDefault("AUDIT_LOG_PATH", "logs/merged_events.csv"),
		EventLogPath:   sharedcfg.EnvOrDefault("EVENT_LOG_PATH", "logs/events.csv"),
		ThresholdsPath: sharedcfg.EnvOrDefault("THRESHOLDS_PATH", "config/thresholds.yaml"),

		MatchTolerance:   tolerance,
		MatchLimit:       matchLimit,
		FeatureCacheSize: parseFeatureCacheSize(),
		RunInterval:      runInterval,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:    kafkaEnabled,
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "flood-alerts"),
	}

	if cfg.SensorDataPath == "" {
		return nil, errors.New("SENSOR_DATA_PATH is required")
	}
	if cfg.EOFeaturesPath == "" {
		return nil, errors.New("EO_FEATURES_PATH is required")
	}
	if cfg.ThresholdsPath == "" {
		return nil, errors.New("THRESHOLDS_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required when Kafka is enabled")
	}

	return cfg, nil
}

func parseFeatureCacheSize() int {
	if s := os.Getenv("FEATURE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
