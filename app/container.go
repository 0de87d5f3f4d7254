package app

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/JackieWYB/majiang-sub001/common/cache"
	"github.com/JackieWYB/majiang-sub001/common/config"
	"github.com/JackieWYB/majiang-sub001/common/database"
	"github.com/JackieWYB/majiang-sub001/common/discovery"
	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/game/archive"
	"github.com/JackieWYB/majiang-sub001/game/dispatch"
	"github.com/JackieWYB/majiang-sub001/game/engine"
	"github.com/JackieWYB/majiang-sub001/game/monitor"
	"github.com/JackieWYB/majiang-sub001/game/room"
	"github.com/JackieWYB/majiang-sub001/game/rules"
	"github.com/JackieWYB/majiang-sub001/game/session"
	"github.com/JackieWYB/majiang-sub001/game/store"
)

// Container 游戏服的全部运行组件，按依赖顺序装配
type Container struct {
	Redis      *database.RedisManager
	Mongo      *database.MongoManager
	Local      *cache.GeneralCache
	Store      *store.Store
	Nats       *nats.Conn
	Sender     *dispatch.Sender
	Archiver   *archive.Archiver
	Engines    *engine.Registry
	Rooms      *room.Manager
	Sessions   *session.Manager
	Dispatcher *dispatch.Dispatcher
	Registry   *discovery.Registry
	Monitor    *monitor.Monitor
	Worker     *Worker
}

func NewContainer(cfg config.ServerConfiguration) (*Container, error) {
	c := &Container{}

	c.Redis = database.NewRedis(cfg.RedisConf)
	rdb, err := c.Redis.GetClient()
	if err != nil {
		return nil, err
	}
	c.Mongo = database.NewMongo(cfg.MongoConf)

	ttl := time.Duration(cfg.StoreConf.TtlHours) * time.Hour
	c.Local, err = cache.NewGeneralCache(64<<20, ttl)
	if err != nil {
		return nil, err
	}
	c.Store = store.New(rdb, c.Local, ttl)

	c.Nats, err = nats.Connect(cfg.NatsConf.URL)
	if err != nil {
		return nil, fmt.Errorf("nats 连接错误: %w", err)
	}
	c.Sender = dispatch.NewSender(c.Nats, c.Store, c.Store, dispatch.SenderOptions{})

	c.Archiver = archive.NewArchiver(c.Mongo, 0)

	engOpts := engine.DefaultOptions()
	engOpts.WriteBudget = time.Duration(cfg.StoreConf.WriteBudgetMs) * time.Millisecond
	// 房间临界区内回调：房态迁移与掉线记录清理都是纯内存操作，归档自带异步
	engOpts.OnGameEnd = func(st *engine.GameState) {
		c.Rooms.MarkSettlement(st.RoomID)
		if st.Phase == engine.PhaseFinished {
			for _, p := range st.Players {
				c.Sessions.Forget(p.UserID)
			}
		}
		c.Archiver.OnGameEnd(st)
	}
	c.Engines = engine.NewRegistry(c.Store, c.Sender, engOpts)

	c.Rooms = room.NewManager(room.Options{
		MaxActiveRoomsPerOwner: cfg.RoomConf.MaxActiveRoomsPerOwner,
		InactivityThreshold:    time.Duration(cfg.RoomConf.InactivityThresholdMinutes) * time.Minute,
	})
	c.Sessions = session.NewManager(c.Store, c.Engines, session.Options{
		GracePeriod:      time.Duration(cfg.SessionConf.GracePeriodSeconds) * time.Second,
		MaxDisconnection: time.Duration(cfg.SessionConf.MaxDisconnectionMinutes) * time.Minute,
		JwtSecret:        cfg.JwtConf.Secret,
	})
	c.Dispatcher = dispatch.NewDispatcher(c.Rooms, c.Engines, c.Sessions, c.Sender, c.Store, c.Store, ruleResolver(cfg))

	c.Registry = discovery.NewRegistry()
	if err := c.Registry.Register(cfg.EtcdConf, cfg.ID); err != nil {
		return nil, fmt.Errorf("etcd 注册失败: %w", err)
	}
	c.Monitor = monitor.NewMonitor(c.Rooms, c.Registry, 10*time.Second)

	c.Worker = NewWorker(c.Nats, "game."+cfg.ID, c.Dispatcher, c.Sessions)
	return c, nil
}

// ruleResolver 把 ruleId 映射为房间规则，回合计时项取进程配置
func ruleResolver(cfg config.ServerConfiguration) dispatch.RuleResolver {
	base := rules.DefaultConfig()
	if cfg.TurnConf.TurnTimeLimitSeconds > 0 {
		base.Turn.TurnTimeLimitSeconds = cfg.TurnConf.TurnTimeLimitSeconds
	}
	if cfg.TurnConf.ActionTimeLimitSeconds > 0 {
		base.Turn.ActionTimeLimitSeconds = cfg.TurnConf.ActionTimeLimitSeconds
	}
	base.Turn.AutoTrustee = cfg.TurnConf.AutoTrustee
	return func(ruleID string) (rules.RoomConfig, error) {
		switch ruleID {
		case "", "default":
			return base, nil
		}
		return rules.RoomConfig{}, fmt.Errorf("未知规则 %q", ruleID)
	}
}

// Close 逆装配顺序释放资源
func (c *Container) Close() error {
	if c.Worker != nil {
		c.Worker.Close()
	}
	if c.Monitor != nil {
		c.Monitor.Stop()
	}
	if c.Registry != nil {
		c.Registry.Close()
	}
	if c.Engines != nil {
		c.Engines.Range(func(roomID string, _ *engine.Engine) bool {
			c.Engines.Remove(roomID)
			return true
		})
	}
	if c.Sender != nil {
		c.Sender.Close()
	}
	if c.Archiver != nil {
		c.Archiver.Close()
	}
	if c.Nats != nil {
		c.Nats.Close()
	}
	if c.Local != nil {
		c.Local.Close()
	}
	if c.Mongo != nil {
		if err := c.Mongo.Close(); err != nil {
			log.Error("mongodb 关闭出错: %v", err)
		}
	}
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}
