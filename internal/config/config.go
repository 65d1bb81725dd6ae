// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（JWT 密钥、管理员初始密码）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"accounts-admin/internal/apiserver/auth"
	"accounts-admin/internal/shared/storage/mongostore"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// Duration 支持 "5s" / "24h" 字符串的 YAML 时长
type Duration time.Duration

// UnmarshalYAML 实现 yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server ServerConfig `yaml:"server"`
	Mongo  MongoConfig  `yaml:"mongo"`
	Auth   AuthConfig   `yaml:"auth"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// MongoConfig 数据库连接配置
type MongoConfig struct {
	URI                    string   `yaml:"uri"`
	Database               string   `yaml:"database"`
	MaxPoolSize            uint64   `yaml:"max_pool_size"`
	MinPoolSize            uint64   `yaml:"min_pool_size"`
	ServerSelectionTimeout Duration `yaml:"server_selection_timeout"`
	SocketTimeout          Duration `yaml:"socket_timeout"`
	MaxRetries             int      `yaml:"max_retries"`
	RetryDelayBase         Duration `yaml:"retry_delay_base"`
}

// AuthConfig 认证配置（密钥只从环境变量读取）
type AuthConfig struct {
	Issuer          string   `yaml:"issuer"`
	AccessTokenTTL  Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL Duration `yaml:"refresh_token_ttl"`
	BcryptCost      int      `yaml:"bcrypt_cost"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env     Environment
	APIPort string

	Mongo struct {
		Options        mongostore.Options
		MaxRetries     int
		RetryDelayBase time.Duration
	}

	Auth auth.Config

	// 管理员引导（可选，来自环境变量）
	AdminEmail    string
	AdminPassword string
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 环境变量覆盖
func Load() *Config {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	env := parseEnv(getEnv("APP_ENV", "dev"))
	yamlCfg := loadYAMLConfig(env)

	cfg := &Config{
		Env:     env,
		APIPort: getEnv("API_PORT", yamlCfg.Server.Port),
	}

	cfg.Mongo.Options = mongostore.Options{
		URI:                    getEnv("MONGO_URI", yamlCfg.Mongo.URI),
		Database:               getEnv("MONGO_DATABASE", yamlCfg.Mongo.Database),
		MaxPoolSize:            yamlCfg.Mongo.MaxPoolSize,
		MinPoolSize:            yamlCfg.Mongo.MinPoolSize,
		ServerSelectionTimeout: time.Duration(yamlCfg.Mongo.ServerSelectionTimeout),
		SocketTimeout:          time.Duration(yamlCfg.Mongo.SocketTimeout),
	}
	cfg.Mongo.MaxRetries = yamlCfg.Mongo.MaxRetries
	cfg.Mongo.RetryDelayBase = time.Duration(yamlCfg.Mongo.RetryDelayBase)

	cfg.Auth = auth.Config{
		Secret:          os.Getenv("JWT_SECRET"),
		Issuer:          yamlCfg.Auth.Issuer,
		AccessTokenTTL:  time.Duration(yamlCfg.Auth.AccessTokenTTL),
		RefreshTokenTTL: time.Duration(yamlCfg.Auth.RefreshTokenTTL),
		BcryptCost:      yamlCfg.Auth.BcryptCost,
	}

	cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	return cfg
}

// Validate 校验关键配置
// 生产环境缺失签名密钥或数据库 URI 时必须启动失败，不允许静默降级
func (c *Config) Validate() error {
	if c.Env != EnvProduction {
		return nil
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("config: JWT_SECRET is required in production")
	}
	if c.Mongo.Options.URI == "" {
		return fmt.Errorf("config: MONGO_URI is required in production")
	}
	return nil
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server: ServerConfig{Port: "8080"},
		Mongo: MongoConfig{
			URI:                    "mongodb://localhost:27017",
			Database:               "accounts_admin",
			MaxPoolSize:            100,
			MinPoolSize:            0,
			ServerSelectionTimeout: Duration(5 * time.Second),
			SocketTimeout:          Duration(10 * time.Second),
			MaxRetries:             5,
			RetryDelayBase:         Duration(5 * time.Second),
		},
		Auth: AuthConfig{
			Issuer:          "accounts-admin",
			AccessTokenTTL:  Duration(24 * time.Hour),
			RefreshTokenTTL: Duration(7 * 24 * time.Hour),
			BcryptCost:      12,
		},
	}

	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏凭据）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Mongo: %s/%s, Issuer: %s}",
		c.Env, maskPassword(c.Mongo.Options.URI), c.Mongo.Options.Database, c.Auth.Issuer)
}

// maskPassword 隐藏 URI 中的密码
func maskPassword(uri string) string {
	re := regexp.MustCompile(`(://[^:/@]+:)([^@]+)(@)`)
	return re.ReplaceAllString(uri, "${1}***${3}")
}
