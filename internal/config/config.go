// Package config assembles the process configuration from defaults, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/mikhail349/new-admin-panel-sprint-3/checkpoint"
	"github.com/mikhail349/new-admin-panel-sprint-3/engine"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/logger"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/retry"
	"github.com/mikhail349/new-admin-panel-sprint-3/pipeline"
	"github.com/mikhail349/new-admin-panel-sprint-3/server"
	"github.com/mikhail349/new-admin-panel-sprint-3/sinks"
	"github.com/mikhail349/new-admin-panel-sprint-3/sources"
)

// ConfigPathEnvVar names an optional YAML file layered under the environment.
const ConfigPathEnvVar = "ETL_CONFIG_FILE"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Logging    logger.Config          `koanf:"logging"`
	Postgres   sources.PostgresConfig `koanf:"postgres"`
	ETL        pipeline.Config        `koanf:"etl"`
	Scheduler  engine.Config          `koanf:"scheduler"`
	Sink       sinks.Config           `koanf:"sink"`
	Checkpoint checkpoint.Config      `koanf:"checkpoint"`
	// Retry bounds sink loads and remote checkpoint calls.
	Retry  retry.Config  `koanf:"retry"`
	Server server.Config `koanf:"server"`
}

func defaultConfig() *Config {
	return &Config{
		Logging:    logger.Config{Level: "info", Format: "json"},
		Postgres:   sources.DefaultPostgresConfig(),
		ETL:        pipeline.DefaultConfig(),
		Scheduler:  engine.DefaultConfig(),
		Sink:       sinks.DefaultConfig(),
		Checkpoint: checkpoint.DefaultConfig(),
		Retry:      retry.DefaultConfig(),
		Server:     server.DefaultConfig(),
	}
}

// Load reads .env, then layers defaults, the optional file and the
// environment, and validates the result.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processLegacyAddrs(k); err != nil {
		return nil, fmt.Errorf("failed to process legacy addresses: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field tags and the settings a chosen backend needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	switch c.Checkpoint.Backend {
	case checkpoint.BackendFile:
		if c.Checkpoint.File.Path == "" {
			return fmt.Errorf("%w: checkpoint.file.path is required for the file backend", ErrInvalid)
		}
	case checkpoint.BackendRedis:
		if c.Checkpoint.Redis.Addr == "" {
			return fmt.Errorf("%w: checkpoint.redis.addr is required for the redis backend", ErrInvalid)
		}
	case checkpoint.BackendEtcd:
		if len(c.Checkpoint.Etcd.Endpoints) == 0 {
			return fmt.Errorf("%w: checkpoint.etcd.endpoints is required for the etcd backend", ErrInvalid)
		}
	case checkpoint.BackendBolt:
		if c.Checkpoint.Bolt.Path == "" {
			return fmt.Errorf("%w: checkpoint.bolt.path is required for the bolt backend", ErrInvalid)
		}
	}

	switch c.Sink.Type {
	case sinks.TypeElasticsearch:
		es := c.Sink.Elastic
		if len(es.Addresses) == 0 && es.CloudID == "" && es.Host == "" {
			return fmt.Errorf("%w: sink.elastic needs addresses, cloud_id or host", ErrInvalid)
		}
	case sinks.TypeMongoDB:
		if c.Sink.Mongo.URI == "" || c.Sink.Mongo.Database == "" {
			return fmt.Errorf("%w: sink.mongo.uri and sink.mongo.database are required", ErrInvalid)
		}
	case sinks.TypeKafka:
		if len(c.Sink.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: sink.kafka.brokers is required", ErrInvalid)
		}
	case sinks.TypeFile:
		if c.Sink.File.Dir == "" {
			return fmt.Errorf("%w: sink.file.dir is required", ErrInvalid)
		}
	}
	return nil
}

var sliceConfigPaths = []string{
	"etl.streams",
	"checkpoint.etcd.endpoints",
	"sink.elastic.addresses",
	"sink.kafka.brokers",
}

// processSliceFields splits comma separated env values into lists.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// processLegacyAddrs folds REDIS_HOST and REDIS_PORT into the redis address.
func processLegacyAddrs(k *koanf.Koanf) error {
	host, port := k.String("legacy.redis_host"), k.String("legacy.redis_port")
	if host == "" && port == "" {
		return nil
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return k.Set("checkpoint.redis.addr", net.JoinHostPort(host, port))
}

var envMappings = map[string]string{
	// legacy names from the compose files
	"db_name":          "postgres.dbname",
	"db_user":          "postgres.user",
	"db_password":      "postgres.password",
	"db_host":          "postgres.host",
	"db_port":          "postgres.port",
	"rows_limit":       "etl.rows_limit",
	"es_host":          "sink.elastic.host",
	"es_port":          "sink.elastic.port",
	"es_index":         "etl.indices.movies",
	"storage_path":     "checkpoint.file.path",
	"redis_host":       "legacy.redis_host",
	"redis_port":       "legacy.redis_port",
	"backoff_max_time": "retry.max_elapsed",
	"poll_interval":    "scheduler.poll_interval",

	"db_sslmode":          "postgres.sslmode",
	"db_connect_timeout":  "postgres.connect_timeout",
	"db_application_name": "postgres.application_name",

	"etl_streams":      "etl.streams",
	"es_index_movies":  "etl.indices.movies",
	"es_index_genres":  "etl.indices.genres",
	"es_index_persons": "etl.indices.persons",

	"backoff_base_delay": "retry.base_delay",
	"backoff_multiplier": "retry.multiplier",
	"backoff_max_delay":  "retry.max_delay",
	"backoff_jitter":     "retry.jitter",

	"connect_base_delay": "scheduler.connect.base_delay",
	"connect_max_delay":  "scheduler.connect.max_delay",

	"sink_type":                    "sink.type",
	"es_scheme":                    "sink.elastic.scheme",
	"es_addresses":                 "sink.elastic.addresses",
	"es_username":                  "sink.elastic.username",
	"es_password":                  "sink.elastic.password",
	"es_api_key":                   "sink.elastic.api_key",
	"es_cloud_id":                  "sink.elastic.cloud_id",
	"mongo_uri":                    "sink.mongo.uri",
	"mongo_database":               "sink.mongo.database",
	"kafka_brokers":                "sink.kafka.brokers",
	"kafka_topic_prefix":           "sink.kafka.topic_prefix",
	"sink_file_dir":                "sink.file.dir",
	"breaker_enabled":              "sink.breaker.enabled",
	"breaker_consecutive_failures": "sink.breaker.consecutive_failures",
	"breaker_open_timeout":         "sink.breaker.open_timeout",

	"checkpoint_backend":   "checkpoint.backend",
	"checkpoint_namespace": "checkpoint.namespace",
	"redis_addr":           "checkpoint.redis.addr",
	"redis_username":       "checkpoint.redis.username",
	"redis_password":       "checkpoint.redis.password",
	"redis_db":             "checkpoint.redis.db",
	"etcd_endpoints":       "checkpoint.etcd.endpoints",
	"etcd_username":        "checkpoint.etcd.username",
	"etcd_password":        "checkpoint.etcd.password",
	"badger_dir":           "checkpoint.badger.dir",
	"bolt_path":            "checkpoint.bolt.path",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"server_enabled": "server.enabled",
	"server_addr":    "server.addr",
}

// durationPaths accept a bare integer meaning seconds.
var durationPaths = map[string]bool{
	"postgres.connect_timeout":     true,
	"retry.max_elapsed":            true,
	"retry.base_delay":             true,
	"retry.max_delay":              true,
	"scheduler.poll_interval":      true,
	"scheduler.connect.base_delay": true,
	"scheduler.connect.max_delay":  true,
	"sink.breaker.open_timeout":    true,
}

// envTransformFunc maps an env var onto its config path. Unmapped vars are
// dropped.
func envTransformFunc(key, value string) (string, interface{}) {
	path, ok := envMappings[strings.ToLower(key)]
	if !ok {
		return "", nil
	}
	if durationPaths[path] {
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			return path, time.Duration(secs * float64(time.Second)).String()
		}
	}
	return path, value
}
