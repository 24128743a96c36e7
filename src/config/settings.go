package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultSettingsPath 默认配置文件位置
const DefaultSettingsPath = "config/settings.yaml"

// ClientSettings 单个节点客户端的连接方式
type ClientSettings struct {
	Scheme string `yaml:"scheme"`
	Host   string `yaml:"host"`
}

// Settings 全局配置结构
type Settings struct {
	RPC struct {
		Scheme            string        `yaml:"scheme" envconfig:"EXCAVATOR_RPC_SCHEME"`
		Host              string        `yaml:"host" envconfig:"EXCAVATOR_RPC_HOST"`
		Timeout           time.Duration `yaml:"timeout" envconfig:"EXCAVATOR_RPC_TIMEOUT"`
		MaxAttempts       int           `yaml:"maxAttempts" envconfig:"EXCAVATOR_RPC_MAX_ATTEMPTS"`
		RetryDelay        time.Duration `yaml:"retryDelay" envconfig:"EXCAVATOR_RPC_RETRY_DELAY"`
		RequestsPerSecond float64       `yaml:"requestsPerSecond" envconfig:"EXCAVATOR_RPC_REQUESTS_PER_SECOND"`
		Proxy             string        `yaml:"proxy" envconfig:"EXCAVATOR_RPC_PROXY"`
	} `yaml:"rpc"`

	// 按客户端标识（geth、erigon ...）覆盖 scheme/host
	Clients map[string]ClientSettings `yaml:"clients" ignored:"true"`

	Logging struct {
		Level string `yaml:"level" envconfig:"EXCAVATOR_LOG_LEVEL"`
		File  string `yaml:"file" envconfig:"EXCAVATOR_LOG_FILE"`
	} `yaml:"logging"`

	Archive struct {
		Driver   string `yaml:"driver" envconfig:"EXCAVATOR_ARCHIVE_DRIVER"`
		DSN      string `yaml:"dsn" envconfig:"EXCAVATOR_ARCHIVE_DSN"`
		Host     string `yaml:"host" envconfig:"EXCAVATOR_ARCHIVE_HOST"`
		Port     int    `yaml:"port" envconfig:"EXCAVATOR_ARCHIVE_PORT"`
		User     string `yaml:"user" envconfig:"EXCAVATOR_ARCHIVE_USER"`
		Password string `yaml:"password" envconfig:"EXCAVATOR_ARCHIVE_PASSWORD"`
		Name     string `yaml:"name" envconfig:"EXCAVATOR_ARCHIVE_NAME"`
		Table    string `yaml:"table" envconfig:"EXCAVATOR_ARCHIVE_TABLE"`
	} `yaml:"archive"`
}

// DefaultSettings 没有配置文件时使用的默认值
func DefaultSettings() *Settings {
	s := &Settings{}
	s.RPC.Scheme = "http"
	s.RPC.Host = "127.0.0.1"
	s.RPC.Timeout = 30 * time.Second
	s.RPC.MaxAttempts = 3
	s.RPC.RetryDelay = 500 * time.Millisecond
	s.Clients = map[string]ClientSettings{}
	s.Logging.Level = "info"
	s.Archive.Driver = "mysql"
	s.Archive.Table = "matches"
	return s
}

// LoadSettings 加载配置文件并应用环境变量覆盖。
// path 为空时读取 DefaultSettingsPath，该文件不存在则使用默认值。
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	optional := path == ""
	if optional {
		path = DefaultSettingsPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := envconfig.Process("", settings); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	if settings.Clients == nil {
		settings.Clients = map[string]ClientSettings{}
	}
	return settings, nil
}

// Client 返回客户端标识对应的连接方式，未配置的字段回落到 rpc 默认值
func (s *Settings) Client(id string) ClientSettings {
	c := s.Clients[id]
	if c.Scheme == "" {
		c.Scheme = s.RPC.Scheme
	}
	if c.Host == "" {
		c.Host = s.RPC.Host
	}
	return c
}
