package room

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/game/engine"
	"github.com/JackieWYB/majiang-sub001/game/rules"
)

// roomIDAttempts 6 位房号随机分配的碰撞重试上限
const roomIDAttempts = 16

// Options 房间管理参数
type Options struct {
	MaxActiveRoomsPerOwner int
	InactivityThreshold    time.Duration
	// KnownUser 建房时校验房主是否存在，nil 表示不校验
	KnownUser func(userID string) bool
}

func (o Options) normalize() Options {
	if o.MaxActiveRoomsPerOwner <= 0 {
		o.MaxActiveRoomsPerOwner = 3
	}
	if o.InactivityThreshold <= 0 {
		o.InactivityThreshold = 30 * time.Minute
	}
	return o
}

// Manager 房间生命周期管理器：建房、加入、离开、准备、解散与闲置回收
type Manager struct {
	opts Options

	mu       sync.Mutex
	rooms    map[string]*Room  // roomID → Room
	userRoom map[string]string // userID → roomID
	rng      *rand.Rand
	now      func() time.Time
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts.normalize(),
		rooms:    make(map[string]*Room),
		userRoom: make(map[string]string),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// CreateRoom 建房：分配不冲突的 6 位房号，房主入座 0 号位
func (m *Manager) CreateRoom(ownerID, ruleID string, cfg rules.RoomConfig) (*Room, error) {
	if err := cfg.Validate(); err != nil {
		return nil, engine.NewError(engine.CodeConfigInvalid, "规则配置非法: %v", err)
	}
	if m.opts.KnownUser != nil && !m.opts.KnownUser(ownerID) {
		return nil, engine.NewError(engine.CodeOwnerNotFound, "用户 %s 不存在", ownerID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	owned := 0
	for _, r := range m.rooms {
		if r.OwnerID == ownerID {
			owned++
		}
	}
	if owned >= m.opts.MaxActiveRoomsPerOwner {
		return nil, engine.NewError(engine.CodeOwnerQuotaExceeded,
			"用户 %s 活跃房间已达上限 %d", ownerID, m.opts.MaxActiveRoomsPerOwner)
	}

	roomID, err := m.allocateRoomID()
	if err != nil {
		return nil, err
	}
	now := m.now()
	r := &Room{
		ID:             roomID,
		OwnerID:        ownerID,
		RuleID:         ruleID,
		Config:         cfg,
		Status:         StatusWaiting,
		Seats:          []*Seat{{UserID: ownerID, Index: 0, JoinedAt: now}},
		CreatedAt:      now,
		LastActivityAt: now,
	}
	m.rooms[roomID] = r
	// 房主可拥有多间房，映射保留最早的那间
	if _, ok := m.userRoom[ownerID]; !ok {
		m.userRoom[ownerID] = roomID
	}
	log.Info("房间 %s 创建, 房主 %s, 规则 %s", roomID, ownerID, ruleID)
	return r, nil
}

// JoinRoom 加入房间，座位取最小空闲号
func (m *Manager) JoinRoom(roomID, userID string) (*Room, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, -1, engine.NewError(engine.CodeRoomNotFound, "房间 %s 不存在", roomID)
	}
	if r.Status != StatusWaiting {
		return nil, -1, engine.NewError(engine.CodeRoomClosed, "房间 %s 状态 %s 不可加入", roomID, r.Status)
	}
	if r.seatOf(userID) != nil {
		return nil, -1, engine.NewError(engine.CodeUserAlreadyInRoom, "用户 %s 已在房间 %s", userID, roomID)
	}
	if other, ok := m.userRoom[userID]; ok {
		return nil, -1, engine.NewError(engine.CodeUserInOtherRoom, "用户 %s 已在房间 %s", userID, other)
	}
	idx := r.lowestFreeIndex()
	if idx < 0 {
		return nil, -1, engine.NewError(engine.CodeRoomFull, "房间 %s 已满", roomID)
	}

	r.Seats = append(r.Seats, &Seat{UserID: userID, Index: idx, JoinedAt: m.now()})
	r.LastActivityAt = m.now()
	m.userRoom[userID] = roomID
	log.Info("房间 %s 玩家 %s 入座 %d", roomID, userID, idx)
	return r, idx, nil
}

// LeaveRoom 离开房间：房主离开则房权移交最小座位号玩家，空房解散
func (m *Manager) LeaveRoom(roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return engine.NewError(engine.CodeRoomNotFound, "房间 %s 不存在", roomID)
	}
	seat := r.seatOf(userID)
	if seat == nil {
		return engine.NewError(engine.CodeRoomNotFound, "用户 %s 不在房间 %s", userID, roomID)
	}

	kept := r.Seats[:0]
	for _, s := range r.Seats {
		if s.UserID != userID {
			kept = append(kept, s)
		}
	}
	r.Seats = kept
	if m.userRoom[userID] == roomID {
		delete(m.userRoom, userID)
	}
	r.LastActivityAt = m.now()

	if len(r.Seats) == 0 {
		m.dissolveLocked(r)
		return nil
	}
	if r.OwnerID == userID {
		lowest := r.Seats[0]
		for _, s := range r.Seats[1:] {
			if s.Index < lowest.Index {
				lowest = s
			}
		}
		r.OwnerID = lowest.UserID
		log.Info("房间 %s 房权移交 %s", roomID, r.OwnerID)
	}
	log.Info("房间 %s 玩家 %s 离开", roomID, userID)
	return nil
}

// Ready 更新准备状态，满员全准备后房间进入 READY
func (m *Manager) Ready(roomID, userID string, flag bool) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, engine.NewError(engine.CodeRoomNotFound, "房间 %s 不存在", roomID)
	}
	if r.Status != StatusWaiting && r.Status != StatusReady {
		return nil, engine.NewError(engine.CodeRoomClosed, "房间 %s 状态 %s 不可变更准备", roomID, r.Status)
	}
	seat := r.seatOf(userID)
	if seat == nil {
		return nil, engine.NewError(engine.CodeRoomNotFound, "用户 %s 不在房间 %s", userID, roomID)
	}

	seat.Ready = flag
	r.LastActivityAt = m.now()
	if r.allReady() {
		r.Status = StatusReady
	} else {
		r.Status = StatusWaiting
	}
	return r, nil
}

// Start 开局前的状态迁移：READY → PLAYING，返回入座玩家
func (m *Manager) Start(roomID string) ([]engine.StartPlayer, rules.RoomConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, rules.RoomConfig{}, engine.NewError(engine.CodeRoomNotFound, "房间 %s 不存在", roomID)
	}
	if r.Status != StatusReady {
		return nil, rules.RoomConfig{}, engine.NewError(engine.CodeRoomNotReady, "房间 %s 未就绪", roomID)
	}

	players := make([]engine.StartPlayer, 0, len(r.Seats))
	for _, s := range r.Seats {
		players = append(players, engine.StartPlayer{UserID: s.UserID, Seat: s.Index})
	}
	r.Status = StatusPlaying
	r.LastActivityAt = m.now()
	return players, r.Config, nil
}

// MarkSettlement 一局结束，房间回到结算态等待续局或解散
func (m *Manager) MarkSettlement(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok && r.Status == StatusPlaying {
		r.Status = StatusSettlement
		r.LastActivityAt = m.now()
	}
}

// Resume 续局：SETTLEMENT → PLAYING
func (m *Manager) Resume(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok && r.Status == StatusSettlement {
		r.Status = StatusPlaying
		r.LastActivityAt = m.now()
	}
}

// DissolveRoom 解散房间，requesterID 为空表示系统发起
func (m *Manager) DissolveRoom(roomID, requesterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return engine.NewError(engine.CodeRoomNotFound, "房间 %s 不存在", roomID)
	}
	if requesterID != "" && requesterID != r.OwnerID {
		return engine.NewError(engine.CodeAccessDenied, "用户 %s 不是房间 %s 的房主", requesterID, roomID)
	}
	m.dissolveLocked(r)
	return nil
}

// SweepInactive 回收超过闲置阈值的房间，返回被解散的房号
func (m *Manager) SweepInactive() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.opts.InactivityThreshold)
	var dissolved []string
	for _, r := range m.rooms {
		if r.LastActivityAt.Before(cutoff) {
			dissolved = append(dissolved, r.ID)
			m.dissolveLocked(r)
		}
	}
	return dissolved
}

// Room 查询房间
func (m *Manager) Room(roomID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	return r, ok
}

// RoomByUser 查询用户所在房间
func (m *Manager) RoomByUser(userID string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.userRoom[userID]
	if !ok {
		return nil, false
	}
	r, ok := m.rooms[roomID]
	return r, ok
}

// Stats 房间数与在座玩家数，供负载上报
func (m *Manager) Stats() (roomCount, playerCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms), len(m.userRoom)
}

// Touch 外部动作刷新活跃时间，闲置回收以此为准
func (m *Manager) Touch(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok {
		r.LastActivityAt = m.now()
	}
}

// dissolveLocked 在持锁状态下清空座位并移除房间
func (m *Manager) dissolveLocked(r *Room) {
	for _, s := range r.Seats {
		if m.userRoom[s.UserID] == r.ID {
			delete(m.userRoom, s.UserID)
		}
	}
	r.Seats = nil
	r.Status = StatusDissolved
	delete(m.rooms, r.ID)
	log.Info("房间 %s 已解散", r.ID)
}

// allocateRoomID 随机 6 位房号，碰撞重试
func (m *Manager) allocateRoomID() (string, error) {
	for i := 0; i < roomIDAttempts; i++ {
		id := fmt.Sprintf("%06d", 100000+m.rng.Intn(900000))
		if _, exists := m.rooms[id]; !exists {
			return id, nil
		}
	}
	return "", engine.NewError(engine.CodeRoomBusy, "房号分配失败, 活跃房间过多")
}
