package im_sdk

import (
	"github.com/go-redis/redis/v8"
	"github.com/symposium-im/im-sdk/service"
	"gorm.io/gorm"
)

type Config struct {
	DB          *gorm.DB
	RDB         *redis.Client
	TablePrefix string

	// AI 补全服务配置（DeepSeek 兼容接口）
	AI service.AIConfig

	// Completer 不为空时替换默认的 HTTP 补全客户端，主要用于测试
	Completer service.Completer

	// AISeeds 启动时幂等写入的 AI 角色
	AISeeds []service.AISeed
}

type Option func(*Config)

func WithDB(db *gorm.DB) Option {
	return func(c *Config) {
		c.DB = db
	}
}

func WithRDB(RDB *redis.Client) Option {
	return func(c *Config) {
		c.RDB = RDB
	}
}

// WithTablePrefix 设置表名前缀，缺省 sym_。
// NewEngine 会在建 DAO、迁移之前写入 models 层，对 TableName 和手写 JOIN 同时生效。
func WithTablePrefix(prefix string) Option {
	return func(c *Config) {
		c.TablePrefix = prefix
	}
}

// WithAI 配置 AI 补全接口。不配置时从环境变量取默认值。
func WithAI(cfg service.AIConfig) Option {
	return func(c *Config) {
		c.AI = cfg
	}
}

// WithCompleter 注入自定义补全实现，覆盖默认 HTTP 客户端。
func WithCompleter(cp service.Completer) Option {
	return func(c *Config) {
		c.Completer = cp
	}
}

// WithAISeeds 配置启动时写入的 AI 角色（按 username 幂等）。
func WithAISeeds(seeds []service.AISeed) Option {
	return func(c *Config) {
		c.AISeeds = seeds
	}
}
