package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Nabezky    NabezkyConfig    `yaml:"nabezky"`
	VoucherBox VoucherBoxConfig `yaml:"voucherbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                      string `yaml:"host"`
	Port                      int    `yaml:"port"`
	OrderStatusTopicName      string `yaml:"order_status_topic_name"`
	VoucherUpdatedTopicName   string `yaml:"voucher_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name"`
	UseSSL   bool   `yaml:"use_ssl"`
	UseTLS   bool   `yaml:"use_tls"`
	Enabled  bool   `yaml:"enabled"`
}

// NabezkyConfig описывает подключение к API Nabezky и настройки коннектора.
type NabezkyConfig struct {
	// Mode: "http" (боевой клиент) или "fake" (детерминированная заглушка
	// для локального стенда).
	Mode            string  `yaml:"mode"`
	APIURL          string  `yaml:"api_url"`
	MapURL          string  `yaml:"map_url"`
	AccessToken     string  `yaml:"access_token"`
	CallbackURL     string  `yaml:"callback_url"`
	SiteURL         string  `yaml:"site_url"`
	Products        []int64 `yaml:"products"`
	DefaultRegionID int     `yaml:"default_region_id"`
	Enabled         bool    `yaml:"enabled"`
	SupportEmail    string  `yaml:"support_email"`
}

type VoucherBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
	AdminToken         string `yaml:"admin_token"`

	VoucherCacheTTLSeconds   int `yaml:"voucher_cache_ttl_seconds"`
	StatusPollTimeoutSeconds int `yaml:"status_poll_timeout_seconds"`
	RateLimitPerMinute       int `yaml:"rate_limit_per_minute"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
