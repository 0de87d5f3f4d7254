package session

import (
	"context"
	"sync"
	"time"

	"github.com/JackieWYB/majiang-sub001/common/jwts"
	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/game/engine"
)

// Info 一条会话，传输层建连时创建、断开时销毁
type Info struct {
	SessionID       string    `json:"sessionId"`
	UserID          string    `json:"userId"`
	RoomID          string    `json:"roomId,omitempty"`
	ConnectedAt     time.Time `json:"connectedAt"`
	LastHeartbeatAt time.Time `json:"lastHeartbeatAt"`
}

// Store 会话关系的存储接口，由 store 包实现
// 两个关系：user → sessionId、sessionId → Info
type Store interface {
	SaveSession(ctx context.Context, info Info) error
	RemoveSession(ctx context.Context, sessionID string) error
	SessionByUser(ctx context.Context, userID string) (string, error)
	SessionInfo(ctx context.Context, sessionID string) (Info, error)
	UpdateHeartbeat(ctx context.Context, sessionID string) error
}

// Options 宽限参数
type Options struct {
	GracePeriod      time.Duration // 掉线后转托管的宽限
	MaxDisconnection time.Duration // 超过即按离场处理
	JwtSecret        string
}

// ReconnectResult 重连契约返回值
type ReconnectResult struct {
	Success  bool                 `json:"success"`
	RoomID   string               `json:"roomId"`
	Snapshot *engine.GameSnapshot `json:"snapshot,omitempty"`
}

type disconnectRecord struct {
	userID      string
	roomID      string
	at          time.Time
	reconnected bool
	graceTimer  *time.Timer
	finalTimer  *time.Timer
}

// Manager 会话与重连管理器：掉线宽限、托管升级、快照恢复
type Manager struct {
	store   Store
	engines *engine.Registry
	opts    Options

	mu      sync.Mutex
	records map[string]*disconnectRecord // userID → 掉线记录
}

func NewManager(store Store, engines *engine.Registry, opts Options) *Manager {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = 60 * time.Second
	}
	if opts.MaxDisconnection <= 0 {
		opts.MaxDisconnection = 5 * time.Minute
	}
	return &Manager{
		store:   store,
		engines: engines,
		opts:    opts,
		records: make(map[string]*disconnectRecord),
	}
}

// Connect 建连登记会话
func (m *Manager) Connect(ctx context.Context, sessionID, userID, roomID string) error {
	now := time.Now()
	return m.store.SaveSession(ctx, Info{
		SessionID:       sessionID,
		UserID:          userID,
		RoomID:          roomID,
		ConnectedAt:     now,
		LastHeartbeatAt: now,
	})
}

// Heartbeat 刷新心跳时间戳
func (m *Manager) Heartbeat(ctx context.Context, sessionID string) error {
	return m.store.UpdateHeartbeat(ctx, sessionID)
}

// Disconnect 传输层关闭回调：玩家置掉线并启动宽限计时
func (m *Manager) Disconnect(ctx context.Context, sessionID string) error {
	info, err := m.store.SessionInfo(ctx, sessionID)
	if err != nil {
		return engine.NewError(engine.CodeNoDisconnectRecord, "会话 %s 不存在", sessionID)
	}
	if err := m.store.RemoveSession(ctx, sessionID); err != nil {
		log.Warn("会话 %s 清理失败: %v", sessionID, err)
	}
	if info.RoomID == "" {
		return nil
	}

	eng, ok := m.engines.Get(info.RoomID)
	if !ok {
		return nil
	}
	if err := eng.Disconnect(info.UserID); err != nil {
		log.Warn("房间 %s 玩家 %s 掉线标记失败: %v", info.RoomID, info.UserID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old := m.records[info.UserID]; old != nil {
		old.cancel()
	}
	rec := &disconnectRecord{userID: info.UserID, roomID: info.RoomID, at: time.Now()}
	rec.graceTimer = time.AfterFunc(m.opts.GracePeriod, func() {
		m.onGraceExpired(rec)
	})
	rec.finalTimer = time.AfterFunc(m.opts.MaxDisconnection, func() {
		m.onMaxDisconnection(rec)
	})
	m.records[info.UserID] = rec
	log.Info("玩家 %s 掉线, 房间 %s, 宽限 %s", info.UserID, info.RoomID, m.opts.GracePeriod)
	return nil
}

// Reconnect 校验 token 并恢复房间绑定，返回个人快照；重复调用等效一次
func (m *Manager) Reconnect(ctx context.Context, token, newSessionID string) (*ReconnectResult, error) {
	userID, err := jwts.ParseToken(token, m.opts.JwtSecret)
	if err != nil {
		return nil, engine.NewError(engine.CodeInvalidToken, "token 校验失败: %v", err)
	}

	m.mu.Lock()
	rec := m.records[userID]
	m.mu.Unlock()
	if rec == nil {
		return nil, engine.NewError(engine.CodeNoDisconnectRecord, "用户 %s 没有掉线记录", userID)
	}

	eng, ok := m.engines.Get(rec.roomID)
	if !ok {
		return nil, engine.NewError(engine.CodeRoomGone, "房间 %s 已不存在", rec.roomID)
	}
	snap, err := eng.Reconnect(userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	rec.cancel()
	rec.reconnected = true
	m.mu.Unlock()

	if err := m.Connect(ctx, newSessionID, userID, rec.roomID); err != nil {
		log.Warn("重连会话 %s 登记失败: %v", newSessionID, err)
	}
	log.Info("玩家 %s 重连成功, 房间 %s", userID, rec.roomID)
	return &ReconnectResult{Success: true, RoomID: rec.roomID, Snapshot: snap}, nil
}

// Forget 房间结束后清理掉线记录
func (m *Manager) Forget(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec := m.records[userID]; rec != nil {
		rec.cancel()
		delete(m.records, userID)
	}
}

// onGraceExpired 宽限期耗尽：切托管，重连仍然允许
func (m *Manager) onGraceExpired(rec *disconnectRecord) {
	m.mu.Lock()
	done := rec.reconnected
	m.mu.Unlock()
	if done {
		return
	}
	if eng, ok := m.engines.Get(rec.roomID); ok {
		if err := eng.SetTrustee(rec.userID); err != nil {
			log.Warn("房间 %s 玩家 %s 托管切换失败: %v", rec.roomID, rec.userID, err)
		}
	}
}

// onMaxDisconnection 掉线超过硬上限：本局按离场处理
func (m *Manager) onMaxDisconnection(rec *disconnectRecord) {
	m.mu.Lock()
	done := rec.reconnected
	m.mu.Unlock()
	if done {
		return
	}
	if eng, ok := m.engines.Get(rec.roomID); ok {
		if err := eng.MarkFinished(rec.userID); err != nil {
			log.Warn("房间 %s 玩家 %s 离场标记失败: %v", rec.roomID, rec.userID, err)
		}
	}
	log.Info("玩家 %s 掉线超过上限, 本局离场", rec.userID)
}

func (r *disconnectRecord) cancel() {
	if r.graceTimer != nil {
		r.graceTimer.Stop()
	}
	if r.finalTimer != nil {
		r.finalTimer.Stop()
	}
}
