package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/logger"
)

var globalRedis redis.UniversalClient

// InitRedis 按配置的部署模式建立 Redis 连接并做一次探活
func InitRedis(cfg *config.RedisConfig) (redis.UniversalClient, error) {
	var client redis.UniversalClient

	switch cfg.Mode {
	case "sentinel":
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.MasterName,
			SentinelAddrs:    cfg.SentinelAddrs,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
			PoolSize:         cfg.PoolSize,
			MinIdleConns:     cfg.MinIdleConns,
		})
	case "cluster":
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.ClusterAddrs,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
		})
	default:
		client = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}

	globalRedis = client
	logger.Info("Redis 连接成功", zap.String("mode", cfg.Mode))
	return client, nil
}

// CloseRedis 关闭连接，优雅停机时调用
func CloseRedis() {
	if globalRedis == nil {
		return
	}
	if err := globalRedis.Close(); err != nil {
		logger.Error("Redis 关闭失败", zap.Error(err))
		return
	}
	logger.Info("Redis 已关闭")
}
