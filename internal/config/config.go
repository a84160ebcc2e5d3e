package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tokenkit/pkg/logger"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "TOKENKIT_CONFIG"

// DefaultPath 是未显式指定时的配置文件位置。
var DefaultPath = filepath.Join("configs", "tokenkit.json")

// Config 描述了 tokenkit 启动阶段需要加载的核心配置。
type Config struct {
	Web3    Web3Config    `json:"web3"`
	Log     logger.Config `json:"log"`
	Ledger  LedgerConfig  `json:"ledger"`
	Events  EventsConfig  `json:"events"`
	Runtime RuntimeConfig `json:"runtime"`
}

// Web3Config 指向链定义文件与合约构建产物。
type Web3Config struct {
	ChainConfig  string `json:"chain_config"`
	ArtifactPath string `json:"artifact_path"`
}

// LedgerConfig 选择操作台账的存储后端。
type LedgerConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// ConnMaxLifetime 返回连接最长存活时间。
func (c LedgerConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSeconds) * time.Second
}

// EventsConfig 选择事件发布的目标。
type EventsConfig struct {
	Driver   string         `json:"driver"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 事件列表。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	List     string `json:"list"`
}

// RabbitMQConfig 描述 RabbitMQ 事件队列。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// ResolvePath 按 显式参数 > 环境变量 > 默认值 的顺序确定配置文件路径。
func ResolvePath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultPath
}

// Load 解析指定路径的 JSON 配置文件。文件不存在时返回默认配置，
// 相对路径以配置文件所在目录为基准。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	var cfg Config
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// 使用默认配置。
	case err != nil:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Web3.ChainConfig == "" {
		c.Web3.ChainConfig = "chains.yaml"
	}
	c.Web3.ChainConfig = resolve(baseDir, c.Web3.ChainConfig)
	if c.Web3.ArtifactPath != "" {
		c.Web3.ArtifactPath = resolve(baseDir, c.Web3.ArtifactPath)
	}

	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "memory"
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "none"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = "data"
	}
	c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir)

	if c.Log.Audit.Enabled && c.Log.Audit.Path == "" {
		c.Log.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}

func (c *Config) validate() error {
	switch c.Ledger.Driver {
	case "memory", "mysql":
	default:
		return fmt.Errorf("未知的台账驱动: %s", c.Ledger.Driver)
	}
	if c.Ledger.Driver == "mysql" && strings.TrimSpace(c.Ledger.DSN) == "" {
		return errors.New("mysql 台账需要配置 dsn")
	}
	switch c.Events.Driver {
	case "none", "memory", "redis", "rabbitmq":
	default:
		return fmt.Errorf("未知的事件驱动: %s", c.Events.Driver)
	}
	return nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
