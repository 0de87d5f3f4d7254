package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ServerConfig 进程级配置，启动时从配置文件加载一次
var ServerConfig ServerConfiguration

type ServerConfiguration struct {
	ID          string      `mapstructure:"id"`
	MetricPort  int         `mapstructure:"metricPort"`
	LogConf     LogConf     `mapstructure:"log"`
	RedisConf   RedisConf   `mapstructure:"redis"`
	MongoConf   MongoConf   `mapstructure:"mongo"`
	EtcdConf    EtcdConf    `mapstructure:"etcd"`
	NatsConf    NatsConf    `mapstructure:"nats"`
	JwtConf     JwtConf     `mapstructure:"jwt"`
	TurnConf    TurnConf    `mapstructure:"turn"`
	SessionConf SessionConf `mapstructure:"session"`
	RoomConf    RoomConf    `mapstructure:"room"`
	StoreConf   StoreConf   `mapstructure:"store"`
}

type LogConf struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

type RedisConf struct {
	Addr         string   `mapstructure:"addr"`
	ClusterAddrs []string `mapstructure:"clusterAddrs"`
	Password     string   `mapstructure:"password"`
	PoolSize     int      `mapstructure:"poolSize"`
	MinIdleConns int      `mapstructure:"minIdleConns"`
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
}

type MongoConf struct {
	Url         string `mapstructure:"url"`
	Db          string `mapstructure:"db"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	MinPoolSize int    `mapstructure:"minPoolSize"`
	MaxPoolSize int    `mapstructure:"maxPoolSize"`
}

type EtcdConf struct {
	Addrs       []string       `mapstructure:"addrs"`
	DialTimeout int            `mapstructure:"dialTimeout"`
	Register    RegisterServer `mapstructure:"register"`
}

type RegisterServer struct {
	Addr    string `mapstructure:"addr"`
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Weight  int    `mapstructure:"weight"`
	Ttl     int    `mapstructure:"ttl"`
}

type NatsConf struct {
	URL string `mapstructure:"url"`
}

type JwtConf struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"`
}

// TurnConf 回合计时配置
type TurnConf struct {
	TurnTimeLimitSeconds   int  `mapstructure:"turnTimeLimitSeconds"`
	ActionTimeLimitSeconds int  `mapstructure:"actionTimeLimitSeconds"`
	AutoTrustee            bool `mapstructure:"autoTrustee"`
}

// SessionConf 断线宽限配置
type SessionConf struct {
	GracePeriodSeconds      int `mapstructure:"gracePeriodSeconds"`
	MaxDisconnectionMinutes int `mapstructure:"maxDisconnectionMinutes"`
}

// RoomConf 房间生命周期配置
type RoomConf struct {
	MaxActiveRoomsPerOwner     int `mapstructure:"maxActiveRoomsPerOwner"`
	InactivityThresholdMinutes int `mapstructure:"inactivityThresholdMinutes"`
}

// StoreConf 状态存储配置
type StoreConf struct {
	WriteBudgetMs int `mapstructure:"writeBudgetMs"`
	TtlHours      int `mapstructure:"ttlHours"`
}

// Load 加载配置文件，环境变量可覆盖（turn.autoTrustee -> TURN_AUTOTRUSTEE）
func Load(configFile string) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	var cfg ServerConfiguration
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	if nodeID := os.Getenv("NODE_ID"); nodeID != "" {
		cfg.ID = nodeID
	}
	if cfg.ID == "" {
		return fmt.Errorf("配置缺少节点 ID（id 字段或 NODE_ID 环境变量）")
	}

	v.WatchConfig()
	v.OnConfigChange(func(in fsnotify.Event) {
		// 运行期只接受日志级别热更新，其余字段重启生效
		var next ServerConfiguration
		if err := v.Unmarshal(&next); err == nil {
			ServerConfig.LogConf.Level = next.LogConf.Level
		}
	})

	ServerConfig = cfg
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("turn.turnTimeLimitSeconds", 15)
	v.SetDefault("turn.actionTimeLimitSeconds", 2)
	v.SetDefault("turn.autoTrustee", true)
	v.SetDefault("session.gracePeriodSeconds", 60)
	v.SetDefault("session.maxDisconnectionMinutes", 5)
	v.SetDefault("room.maxActiveRoomsPerOwner", 3)
	v.SetDefault("room.inactivityThresholdMinutes", 30)
	v.SetDefault("store.writeBudgetMs", 100)
	v.SetDefault("store.ttlHours", 24)
	v.SetDefault("log.level", "info")
}
