package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	kafkabus "energy-series/internal/messaging/kafka"
	mqttbus "energy-series/internal/messaging/mqtt"
	series "energy-series/internal/series/domain"
	"energy-series/internal/series/infrastructure/sqlstore"
	seriesbus "energy-series/internal/series/interfaces/bus"
)

const (
	storeDriverMemory = "memory"

	transportMQTT   = "mqtt"
	transportKafka  = "kafka"
	transportMemory = "memory"
)

type config struct {
	Store                 storeConfig      `yaml:"store"`
	Location              string           `yaml:"location"`
	Transport             transportConfig  `yaml:"transport"`
	Topics                seriesbus.Topics `yaml:"topics"`
	HTTPAddr              string           `yaml:"http_addr"`
	RequestTimeout        time.Duration    `yaml:"request_timeout"`
	MaxConcurrentRequests int              `yaml:"max_concurrent_requests"`
	NearestTolerance      time.Duration    `yaml:"nearest_tolerance"`
	HourCorrection        time.Duration    `yaml:"hour_correction"`
	ShutdownTimeout       time.Duration    `yaml:"shutdown_timeout"`
}

type storeConfig struct {
	Driver       string           `yaml:"driver"`
	DSN          string           `yaml:"dsn"`
	Columns      sqlstore.Columns `yaml:"columns"`
	MaxOpenConns int              `yaml:"max_open_conns"`
}

type transportConfig struct {
	Kind  string          `yaml:"kind"`
	MQTT  mqttbus.Config  `yaml:"mqtt"`
	Kafka kafkabus.Config `yaml:"kafka"`
}

func defaultConfig() config {
	return config{
		Store: storeConfig{
			Driver:       string(sqlstore.DialectPostgres),
			Columns:      sqlstore.DefaultColumns,
			MaxOpenConns: 10,
		},
		Transport: transportConfig{
			Kind: transportMQTT,
			MQTT: mqttbus.Config{
				BrokerURL:      "tcp://localhost:1883",
				ClientID:       "energy-series",
				ConnectTimeout: 10 * time.Second,
			},
			Kafka: kafkabus.Config{
				Brokers: []string{"localhost:9092"},
				GroupID: "energy-series",
			},
		},
		Topics:                seriesbus.DefaultTopics(),
		HTTPAddr:              ":8080",
		RequestTimeout:        30 * time.Second,
		MaxConcurrentRequests: 8,
		NearestTolerance:      series.DefaultNearestTolerance,
		HourCorrection:        seriesbus.DefaultHourCorrection,
		ShutdownTimeout:       15 * time.Second,
	}
}

// loadConfig applies defaults, then SERIES_CONFIG, then environment overrides.
func loadConfig() (config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("SERIES_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.Store.Driver = getenvDefault("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", getenvDefault("MYSQL_DSN", cfg.Store.DSN)))
	cfg.Store.Columns.Time = getenvDefault("STORE_TIME_COLUMN", cfg.Store.Columns.Time)
	cfg.Store.Columns.Power = getenvDefault("STORE_POWER_COLUMN", cfg.Store.Columns.Power)
	cfg.Store.Columns.Energy = getenvDefault("STORE_ENERGY_COLUMN", cfg.Store.Columns.Energy)
	cfg.Store.MaxOpenConns = getenvIntDefault("DB_MAX_OPEN_CONNS", cfg.Store.MaxOpenConns)
	cfg.Location = getenvDefault("SERIES_LOCATION", cfg.Location)

	cfg.Transport.Kind = getenvDefault("TRANSPORT", cfg.Transport.Kind)
	cfg.Transport.MQTT.BrokerURL = getenvDefault("MQTT_BROKER_URL", cfg.Transport.MQTT.BrokerURL)
	cfg.Transport.MQTT.ClientID = getenvDefault("MQTT_CLIENT_ID", cfg.Transport.MQTT.ClientID)
	cfg.Transport.MQTT.Username = getenvDefault("MQTT_USERNAME", cfg.Transport.MQTT.Username)
	cfg.Transport.MQTT.Password = getenvDefault("MQTT_PASSWORD", cfg.Transport.MQTT.Password)
	cfg.Transport.MQTT.QoS = byte(getenvIntDefault("MQTT_QOS", int(cfg.Transport.MQTT.QoS)))
	if brokers := splitCSV(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Transport.Kafka.Brokers = brokers
	}
	cfg.Transport.Kafka.GroupID = getenvDefault("KAFKA_GROUP_ID", cfg.Transport.Kafka.GroupID)

	cfg.Topics.Request = getenvDefault("TOPIC_REQUEST", cfg.Topics.Request)
	cfg.Topics.Power = getenvDefault("TOPIC_POWER", cfg.Topics.Power)
	cfg.Topics.Energy = getenvDefault("TOPIC_ENERGY", cfg.Topics.Energy)
	cfg.Topics.Month = getenvDefault("TOPIC_MONTH", cfg.Topics.Month)
	cfg.Topics.Tables = getenvDefault("TOPIC_TABLES", cfg.Topics.Tables)

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.RequestTimeout = getenvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.MaxConcurrentRequests = getenvIntDefault("MAX_CONCURRENT_REQUESTS", cfg.MaxConcurrentRequests)
	cfg.NearestTolerance = getenvDuration("NEAREST_TOLERANCE", cfg.NearestTolerance)
	cfg.HourCorrection = getenvDuration("HOUR_CORRECTION", cfg.HourCorrection)
	cfg.ShutdownTimeout = getenvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case storeDriverMemory:
	default:
		if _, err := sqlstore.ParseDialect(c.Store.Driver); err != nil {
			return err
		}
		if c.Store.DSN == "" {
			return errors.New("DATABASE_URL (store.dsn) is required")
		}
	}
	switch c.Transport.Kind {
	case transportMQTT, transportKafka, transportMemory:
	default:
		return fmt.Errorf("unsupported transport %q", c.Transport.Kind)
	}
	if err := c.Topics.Validate(); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.MaxConcurrentRequests <= 0 {
		return errors.New("max_concurrent_requests must be positive")
	}
	if c.NearestTolerance < 0 {
		return errors.New("nearest_tolerance must not be negative")
	}
	if _, err := c.location(); err != nil {
		return err
	}
	return nil
}

// location resolves the zone stored wall-clock timestamps belong to.
func (c config) location() (*time.Location, error) {
	if c.Location == "" || strings.EqualFold(c.Location, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", c.Location, err)
	}
	return loc, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
