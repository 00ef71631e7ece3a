package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认值
const (
	DefaultHost        = "https://clob.polymarket.com"
	DefaultChainID     = 137
	DefaultLogLevel    = "info"
	DefaultSignTimeout = 30 * time.Second
)

// ClobConfig 交易所连接配置
type ClobConfig struct {
	Host          string        `yaml:"host" json:"host"`
	ChainID       int64         `yaml:"chain_id" json:"chain_id"`
	UseServerTime bool          `yaml:"use_server_time" json:"use_server_time"`
	SignTimeout   time.Duration `yaml:"sign_timeout" json:"sign_timeout"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// UnmarshalJSON 时长字段接受 "5s" 这样的字符串或纳秒整数，与 YAML 一致
func (c *ClobConfig) UnmarshalJSON(data []byte) error {
	type plain ClobConfig
	aux := struct {
		*plain
		SignTimeout any `json:"sign_timeout"`
		Timeout     any `json:"timeout"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if c.SignTimeout, err = jsonDuration("sign_timeout", aux.SignTimeout); err != nil {
		return err
	}
	if c.Timeout, err = jsonDuration("timeout", aux.Timeout); err != nil {
		return err
	}
	return nil
}

func jsonDuration(name string, v any) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return 0, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("无效的 %s %q: %w", name, d, err)
		}
		return parsed, nil
	case float64:
		return time.Duration(d), nil
	default:
		return 0, fmt.Errorf("无效的 %s: %v", name, v)
	}
}

// WalletConfig 钱包配置；PrivateKey 与 Mnemonic 二选一
type WalletConfig struct {
	PrivateKey     string `yaml:"private_key" json:"private_key"`
	Mnemonic       string `yaml:"mnemonic" json:"mnemonic"`
	DerivationPath string `yaml:"derivation_path" json:"derivation_path"`
	FunderAddress  string `yaml:"funder_address" json:"funder_address"`
	SignatureType  string `yaml:"signature_type" json:"signature_type"`
}

// APIConfig L2 API 凭证，可为空（之后通过 L1 派生）
type APIConfig struct {
	Key        string `yaml:"key" json:"key"`
	Secret     string `yaml:"secret" json:"secret"`
	Passphrase string `yaml:"passphrase" json:"passphrase"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// SecretStoreConfig 本地凭证存储
type SecretStoreConfig struct {
	Path string `yaml:"path" json:"path"`
	Key  string `yaml:"key" json:"key"`
}

// Config 应用配置
type Config struct {
	Clob        ClobConfig        `yaml:"clob" json:"clob"`
	Wallet      WalletConfig      `yaml:"wallet" json:"wallet"`
	API         APIConfig         `yaml:"api" json:"api"`
	Log         LogConfig         `yaml:"log" json:"log"`
	SecretStore SecretStoreConfig `yaml:"secret_store" json:"secret_store"`
}

// Load 从文件加载配置，再用环境变量覆盖；filePath 为空时只读环境变量
func Load(filePath string) (*Config, error) {
	return LoadWithEnv(filePath, os.Getenv)
}

// LoadWithEnv 同 Load，getenv 用于替换环境变量来源
func LoadWithEnv(filePath string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	if filePath != "" {
		fileCfg, err := loadConfigFile(filePath)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .json)", ext)
	}

	return &cfg, nil
}

// applyEnv 非空的环境变量覆盖文件配置
func applyEnv(cfg *Config, getenv func(string) string) error {
	setString := func(dst *string, name string) {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Clob.Host, "CLOB_HOST")
	if v := strings.TrimSpace(getenv("CHAIN_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CHAIN_ID 无效: %q", v)
		}
		cfg.Clob.ChainID = id
	}
	if v := strings.TrimSpace(getenv("USE_SERVER_TIME")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("USE_SERVER_TIME 无效: %q", v)
		}
		cfg.Clob.UseServerTime = b
	}
	if v := strings.TrimSpace(getenv("SIGN_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SIGN_TIMEOUT 无效: %q", v)
		}
		cfg.Clob.SignTimeout = d
	}

	setString(&cfg.Wallet.PrivateKey, "PRIVATE_KEY")
	setString(&cfg.Wallet.Mnemonic, "MNEMONIC")
	setString(&cfg.Wallet.DerivationPath, "DERIVATION_PATH")
	setString(&cfg.Wallet.FunderAddress, "FUNDER_ADDRESS")
	setString(&cfg.Wallet.SignatureType, "SIGNATURE_TYPE")

	setString(&cfg.API.Key, "CLOB_API_KEY")
	setString(&cfg.API.Secret, "CLOB_SECRET")
	setString(&cfg.API.Passphrase, "CLOB_PASS_PHRASE")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.File, "LOG_FILE")

	setString(&cfg.SecretStore.Path, "SECRET_STORE_PATH")
	setString(&cfg.SecretStore.Key, "SECRET_STORE_KEY")
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Clob.Host == "" {
		cfg.Clob.Host = DefaultHost
	}
	cfg.Clob.Host = strings.TrimSuffix(cfg.Clob.Host, "/")
	if cfg.Clob.ChainID == 0 {
		cfg.Clob.ChainID = DefaultChainID
	}
	if cfg.Clob.SignTimeout == 0 {
		cfg.Clob.SignTimeout = DefaultSignTimeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.MaxSize == 0 {
		cfg.Log.MaxSize = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAge == 0 {
		cfg.Log.MaxAge = 7
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" && c.Wallet.Mnemonic == "" {
		return fmt.Errorf("PRIVATE_KEY 或 MNEMONIC 未配置")
	}
	if c.Wallet.PrivateKey != "" && c.Wallet.Mnemonic != "" {
		return fmt.Errorf("PRIVATE_KEY 与 MNEMONIC 只能配置一个")
	}
	if c.Clob.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID 必须大于 0")
	}
	if c.Clob.SignTimeout < 0 {
		return fmt.Errorf("SIGN_TIMEOUT 不能为负数")
	}

	// API 凭证要么完整，要么全部为空
	set := 0
	for _, v := range []string{c.API.Key, c.API.Secret, c.API.Passphrase} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("CLOB_API_KEY、CLOB_SECRET、CLOB_PASS_PHRASE 必须同时配置")
	}
	return nil
}

// HasAPICreds API 凭证是否已配置
func (c *Config) HasAPICreds() bool {
	return c.API.Key != "" && c.API.Secret != "" && c.API.Passphrase != ""
}
