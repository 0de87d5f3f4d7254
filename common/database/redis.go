package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JackieWYB/majiang-sub001/common/config"
	"github.com/JackieWYB/majiang-sub001/common/log"
)

// RedisManager 封装单机/集群两种客户端，统一通过 Cmdable 访问
type RedisManager struct {
	Cli        *redis.Client
	ClusterCli *redis.ClusterClient
}

func NewRedis(redisConf config.RedisConf) *RedisManager {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var addr string
	if redisConf.Addr != "" {
		addr = redisConf.Addr
	} else if redisConf.Host != "" && redisConf.Port > 0 {
		addr = fmt.Sprintf("%s:%d", redisConf.Host, redisConf.Port)
	} else {
		panic("redis 配置出错")
	}

	m := &RedisManager{}
	if len(redisConf.ClusterAddrs) == 0 {
		m.Cli = redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     redisConf.Password,
			PoolSize:     redisConf.PoolSize,
			MinIdleConns: redisConf.MinIdleConns,
		})
	} else {
		m.ClusterCli = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        redisConf.ClusterAddrs,
			Password:     redisConf.Password,
			PoolSize:     redisConf.PoolSize,
			MinIdleConns: redisConf.MinIdleConns,
		})
	}

	cli, err := m.GetClient()
	if err != nil {
		log.Fatal("redis 客户端未初始化: %v", err)
		return nil
	}
	if err := cli.Ping(ctx).Err(); err != nil {
		log.Fatal("redis 连接错误: %v", err)
		return nil
	}
	return m
}

func (r *RedisManager) GetClient() (redis.Cmdable, error) {
	if r.Cli != nil {
		return r.Cli, nil
	}
	if r.ClusterCli != nil {
		return r.ClusterCli, nil
	}
	return nil, fmt.Errorf("redis 客户端未初始化")
}

func (r *RedisManager) Close() error {
	if r.Cli != nil {
		if err := r.Cli.Close(); err != nil {
			log.Error("redis 关闭出错: %v", err)
			return err
		}
	}
	if r.ClusterCli != nil {
		if err := r.ClusterCli.Close(); err != nil {
			log.Error("redisCluster 关闭出错: %v", err)
			return err
		}
	}
	return nil
}
