// Package config 提供配置加载和管理功能
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var globalConfig *Config

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config 应用程序配置结构
type Config struct {
	Env       string          `yaml:"env"`       // 运行环境 development/production
	Server    ServerConfig    `yaml:"server"`
	ISE       ISEConfig       `yaml:"ise"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Host string `yaml:"host"` // 服务器监听地址
	Port int    `yaml:"port"` // 服务器监听端口
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig 登录认证配置
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`    // JWT签名密钥
	TokenTTL     time.Duration `yaml:"token_ttl"`     // token有效期
	CookieName   string        `yaml:"cookie_name"`   // 保存token的cookie名
	SecureCookie bool          `yaml:"secure_cookie"` // 仅https发送cookie
}

// DatabaseConfig 数据库配置，未配置时使用内存存储
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // memory/postgres/sqlite
	DSN    string `yaml:"dsn"`    // 连接串，sqlite为文件路径
}

// RedisConfig Redis配置，Addr为空时不启用缓存
type RedisConfig struct {
	Addr     string        `yaml:"addr"`      // Redis地址
	Password string        `yaml:"password"`  // Redis密码
	DB       int           `yaml:"db"`        // Redis数据库编号
	StatsTTL time.Duration `yaml:"stats_ttl"` // 统计缓存有效期
}

// Enabled 是否启用Redis
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// WebSocketConfig 浏览器WebSocket配置
type WebSocketConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size"`  // 读缓冲区大小
	WriteBufferSize int `yaml:"write_buffer_size"` // 写缓冲区大小
}

// IsProduction 是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// LookupFunc 读取环境变量
type LookupFunc func(key string) (string, bool)

// GetConfig 获取全局配置实例
func GetConfig() *Config {
	return globalConfig
}

// Load 从文件加载配置，文件不存在时只使用环境变量和默认值
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config, err := Parse(data, os.LookupEnv)
	if err != nil {
		return nil, err
	}

	// 设置全局配置
	globalConfig = config

	return config, nil
}

// Parse 解析配置内容并应用环境变量覆盖、默认值和校验
func Parse(data []byte, lookup LookupFunc) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if lookup != nil {
		if err := applyEnv(&config, lookup); err != nil {
			return nil, err
		}
	}
	setDefaults(&config)

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// applyEnv 环境变量覆盖凭证等敏感配置
func applyEnv(config *Config, lookup LookupFunc) error {
	strs := map[string]*string{
		"APP_ENV":          &config.Env,
		"SERVER_HOST":      &config.Server.Host,
		"XFYUN_APP_ID":     &config.ISE.AppID,
		"XFYUN_API_KEY":    &config.ISE.APIKey,
		"XFYUN_API_SECRET": &config.ISE.APISecret,
		"XFYUN_SERVER_URL": &config.ISE.ServerURL,
		"JWT_SECRET":       &config.Auth.JWTSecret,
		"DATABASE_DRIVER":  &config.Database.Driver,
		"DATABASE_DSN":     &config.Database.DSN,
		"REDIS_ADDR":       &config.Redis.Addr,
		"REDIS_PASSWORD":   &config.Redis.Password,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("环境变量PORT无效: %w", err)
		}
		config.Server.Port = port
	}
	return nil
}

func setDefaults(config *Config) {
	if config.Env == "" {
		config.Env = EnvDevelopment
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 3000
	}

	config.ISE.setDefaults()

	if config.Auth.TokenTTL == 0 {
		config.Auth.TokenTTL = 7 * 24 * time.Hour
	}
	if config.Auth.CookieName == "" {
		config.Auth.CookieName = "auth-token"
	}
	if config.Auth.JWTSecret == "" && !config.IsProduction() {
		config.Auth.JWTSecret = "dev-secret-change-in-production"
	}

	if config.Database.Driver == "" {
		if config.Database.DSN == "" {
			config.Database.Driver = DriverMemory
		} else {
			config.Database.Driver = DriverPostgres
		}
	}

	if config.Redis.StatsTTL == 0 {
		config.Redis.StatsTTL = 5 * time.Minute
	}

	if config.WebSocket.ReadBufferSize == 0 {
		config.WebSocket.ReadBufferSize = 1024
	}
	if config.WebSocket.WriteBufferSize == 0 {
		config.WebSocket.WriteBufferSize = 1024
	}
}

// validateConfig 验证配置是否有效
func validateConfig(config *Config) error {
	if config.Env != EnvDevelopment && config.Env != EnvProduction {
		return fmt.Errorf("未知的运行环境: %s", config.Env)
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return ErrInvalidPort
	}

	if config.Auth.JWTSecret == "" {
		return ErrEmptyJWTSecret
	}
	if config.Auth.TokenTTL < 0 {
		return fmt.Errorf("token有效期不能为负数")
	}

	switch config.Database.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if config.Database.DSN == "" {
			return ErrEmptyDSN
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownDriver, config.Database.Driver)
	}

	if config.ISE.ConnectTimeout < 0 || config.ISE.ResultTimeout < 0 {
		return fmt.Errorf("评测超时时间不能为负数")
	}

	// 评测凭证允许缺失，创建评测会话时再报错
	return nil
}
