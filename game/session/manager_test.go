package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/JackieWYB/majiang-sub001/common/jwts"
	"github.com/JackieWYB/majiang-sub001/game/engine"
	"github.com/JackieWYB/majiang-sub001/game/rules"
)

const testSecret = "session-test-secret"

// memSessionStore 内存版会话存储
type memSessionStore struct {
	mu     sync.Mutex
	byUser map[string]string
	byID   map[string]Info
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{byUser: make(map[string]string), byID: make(map[string]Info)}
}

func (m *memSessionStore) SaveSession(_ context.Context, info Info) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUser[info.UserID] = info.SessionID
	m.byID[info.SessionID] = info
	return nil
}

func (m *memSessionStore) RemoveSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.byID[sessionID]; ok {
		if m.byUser[info.UserID] == sessionID {
			delete(m.byUser, info.UserID)
		}
		delete(m.byID, sessionID)
	}
	return nil
}

func (m *memSessionStore) SessionByUser(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sid, ok := m.byUser[userID]
	if !ok {
		return "", engine.NewError(engine.CodeNoDisconnectRecord, "用户 %s 无会话", userID)
	}
	return sid, nil
}

func (m *memSessionStore) SessionInfo(_ context.Context, sessionID string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.byID[sessionID]
	if !ok {
		return Info{}, engine.NewError(engine.CodeNoDisconnectRecord, "会话 %s 不存在", sessionID)
	}
	return info, nil
}

func (m *memSessionStore) UpdateHeartbeat(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.byID[sessionID]
	if !ok {
		return engine.NewError(engine.CodeNoDisconnectRecord, "会话 %s 不存在", sessionID)
	}
	info.LastHeartbeatAt = time.Now()
	m.byID[sessionID] = info
	return nil
}

// memStateStore 内存版对局状态存储，序列化走与线上相同的 JSON 模式
type memStateStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStateStore) Save(_ context.Context, st *engine.GameState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[st.RoomID] = b
	return nil
}

func (m *memStateStore) Load(_ context.Context, roomID string) (*engine.GameState, error) {
	m.mu.Lock()
	b, ok := m.data[roomID]
	m.mu.Unlock()
	if !ok {
		return nil, engine.NewError(engine.CodeRoomGone, "房间 %s 无状态", roomID)
	}
	var st engine.GameState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (m *memStateStore) Exists(_ context.Context, roomID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[roomID]
	return ok, nil
}

func (m *memStateStore) Delete(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, roomID)
	return nil
}

func (m *memStateStore) RefreshTTL(context.Context, string) error { return nil }

type nopEmitter struct{}

func (nopEmitter) SendToUser(string, engine.Event)              {}
func (nopEmitter) BroadcastToRoom(string, engine.Event, string) {}

func newTestEnv(t *testing.T, opts Options) (*Manager, *engine.Registry, string) {
	t.Helper()
	opts.JwtSecret = testSecret
	reg := engine.NewRegistry(&memStateStore{}, nopEmitter{}, engine.DefaultOptions())
	t.Cleanup(func() {
		reg.Range(func(roomID string, _ *engine.Engine) bool {
			reg.Remove(roomID)
			return true
		})
	})

	roomID := "100001"
	e := reg.Obtain(roomID)
	players := []engine.StartPlayer{
		{UserID: "u1", Seat: 0},
		{UserID: "u2", Seat: 1},
		{UserID: "u3", Seat: 2},
	}
	if err := e.Start(players, rules.DefaultConfig(), 42); err != nil {
		t.Fatalf("开局失败: %v", err)
	}
	return NewManager(newMemSessionStore(), reg, opts), reg, roomID
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := jwts.TokenFor(userID, testSecret, 1)
	if err != nil {
		t.Fatalf("签发 token 失败: %v", err)
	}
	return tok
}

func playerStatus(t *testing.T, e *engine.Engine, userID string) engine.PlayerStatus {
	t.Helper()
	var status engine.PlayerStatus
	if err := e.Inspect(func(st *engine.GameState) {
		status = st.PlayerByID(userID).Status
	}); err != nil {
		t.Fatalf("读取状态失败: %v", err)
	}
	return status
}

func waitForStatus(t *testing.T, e *engine.Engine, userID string, want engine.PlayerStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if playerStatus(t, e, userID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("玩家 %s 状态未到达 %s, 当前 %s", userID, want, playerStatus(t, e, userID))
}

func TestDisconnectEscalatesToTrustee(t *testing.T) {
	mgr, reg, roomID := newTestEnv(t, Options{
		GracePeriod:      30 * time.Millisecond,
		MaxDisconnection: 10 * time.Minute,
	})
	ctx := context.Background()
	e, _ := reg.Get(roomID)

	if err := mgr.Connect(ctx, "s-u2", "u2", roomID); err != nil {
		t.Fatalf("建连失败: %v", err)
	}
	if err := mgr.Disconnect(ctx, "s-u2"); err != nil {
		t.Fatalf("掉线处理失败: %v", err)
	}
	if got := playerStatus(t, e, "u2"); got != engine.StatusDisconnected {
		t.Fatalf("掉线后状态 = %s, 期望 DISCONNECTED", got)
	}

	waitForStatus(t, e, "u2", engine.StatusTrustee)
}

func TestReconnectWithinGraceRestoresSnapshot(t *testing.T) {
	mgr, reg, roomID := newTestEnv(t, Options{
		GracePeriod:      10 * time.Minute,
		MaxDisconnection: 20 * time.Minute,
	})
	ctx := context.Background()
	e, _ := reg.Get(roomID)

	if err := mgr.Connect(ctx, "s-u2", "u2", roomID); err != nil {
		t.Fatalf("建连失败: %v", err)
	}
	if err := mgr.Disconnect(ctx, "s-u2"); err != nil {
		t.Fatalf("掉线处理失败: %v", err)
	}

	res, err := mgr.Reconnect(ctx, token(t, "u2"), "s-u2-new")
	if err != nil {
		t.Fatalf("重连失败: %v", err)
	}
	if !res.Success || res.RoomID != roomID {
		t.Fatalf("重连结果 = %+v, 期望 success 且 roomId=%s", res, roomID)
	}
	if res.Snapshot == nil {
		t.Fatalf("重连应返回个人快照")
	}
	if res.Snapshot.ForUser != "u2" {
		t.Fatalf("快照视角 = %s, 期望 u2", res.Snapshot.ForUser)
	}
	for _, pv := range res.Snapshot.Players {
		if pv.UserID == "u2" && len(pv.Hand) == 0 {
			t.Fatalf("本人手牌应可见")
		}
		if pv.UserID != "u2" && pv.Hand != nil {
			t.Fatalf("他人手牌 %s 不应下发", pv.UserID)
		}
	}
	if got := playerStatus(t, e, "u2"); got == engine.StatusDisconnected || got == engine.StatusTrustee {
		t.Fatalf("重连后状态 = %s, 不应仍为掉线或托管", got)
	}

	// 重复重连等效一次
	res2, err := mgr.Reconnect(ctx, token(t, "u2"), "s-u2-again")
	if err != nil {
		t.Fatalf("重复重连失败: %v", err)
	}
	if !res2.Success || res2.Snapshot == nil {
		t.Fatalf("重复重连结果 = %+v", res2)
	}
}

func TestReconnectCancelsTrusteeEscalation(t *testing.T) {
	mgr, reg, roomID := newTestEnv(t, Options{
		GracePeriod:      60 * time.Millisecond,
		MaxDisconnection: 10 * time.Minute,
	})
	ctx := context.Background()
	e, _ := reg.Get(roomID)

	if err := mgr.Connect(ctx, "s-u3", "u3", roomID); err != nil {
		t.Fatalf("建连失败: %v", err)
	}
	if err := mgr.Disconnect(ctx, "s-u3"); err != nil {
		t.Fatalf("掉线处理失败: %v", err)
	}
	if _, err := mgr.Reconnect(ctx, token(t, "u3"), "s-u3-new"); err != nil {
		t.Fatalf("重连失败: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if got := playerStatus(t, e, "u3"); got == engine.StatusTrustee {
		t.Fatalf("重连后不应再升级托管")
	}
}

func TestReconnectInvalidToken(t *testing.T) {
	mgr, _, _ := newTestEnv(t, Options{
		GracePeriod:      10 * time.Minute,
		MaxDisconnection: 20 * time.Minute,
	})
	badToken, err := jwts.GetToken(&jwts.CustomClaims{UserID: "u2"}, "wrong-secret")
	if err != nil {
		t.Fatalf("签发 token 失败: %v", err)
	}
	_, err = mgr.Reconnect(context.Background(), badToken, "s-x")
	if engine.CodeOf(err) != engine.CodeInvalidToken {
		t.Fatalf("错误码 = %s, 期望 INVALID_TOKEN", engine.CodeOf(err))
	}
}

func TestReconnectWithoutDisconnectRecord(t *testing.T) {
	mgr, _, _ := newTestEnv(t, Options{
		GracePeriod:      10 * time.Minute,
		MaxDisconnection: 20 * time.Minute,
	})
	_, err := mgr.Reconnect(context.Background(), token(t, "u1"), "s-x")
	if engine.CodeOf(err) != engine.CodeNoDisconnectRecord {
		t.Fatalf("错误码 = %s, 期望 NO_DISCONNECTION_RECORD", engine.CodeOf(err))
	}
}

func TestReconnectRoomGone(t *testing.T) {
	mgr, reg, roomID := newTestEnv(t, Options{
		GracePeriod:      10 * time.Minute,
		MaxDisconnection: 20 * time.Minute,
	})
	ctx := context.Background()
	if err := mgr.Connect(ctx, "s-u2", "u2", roomID); err != nil {
		t.Fatalf("建连失败: %v", err)
	}
	if err := mgr.Disconnect(ctx, "s-u2"); err != nil {
		t.Fatalf("掉线处理失败: %v", err)
	}
	reg.Remove(roomID)

	_, err := mgr.Reconnect(ctx, token(t, "u2"), "s-u2-new")
	if engine.CodeOf(err) != engine.CodeRoomGone {
		t.Fatalf("错误码 = %s, 期望 ROOM_GONE", engine.CodeOf(err))
	}
}

func TestMaxDisconnectionMarksFinished(t *testing.T) {
	mgr, reg, roomID := newTestEnv(t, Options{
		GracePeriod:      10 * time.Millisecond,
		MaxDisconnection: 40 * time.Millisecond,
	})
	ctx := context.Background()
	e, _ := reg.Get(roomID)

	if err := mgr.Connect(ctx, "s-u3", "u3", roomID); err != nil {
		t.Fatalf("建连失败: %v", err)
	}
	if err := mgr.Disconnect(ctx, "s-u3"); err != nil {
		t.Fatalf("掉线处理失败: %v", err)
	}
	waitForStatus(t, e, "u3", engine.StatusFinished)
}

func TestHeartbeatRefreshesTimestamp(t *testing.T) {
	store := newMemSessionStore()
	reg := engine.NewRegistry(&memStateStore{}, nopEmitter{}, engine.DefaultOptions())
	mgr := NewManager(store, reg, Options{
		GracePeriod:      time.Minute,
		MaxDisconnection: 5 * time.Minute,
		JwtSecret:        testSecret,
	})
	ctx := context.Background()
	if err := mgr.Connect(ctx, "s-u1", "u1", ""); err != nil {
		t.Fatalf("建连失败: %v", err)
	}
	before, _ := store.SessionInfo(ctx, "s-u1")
	time.Sleep(5 * time.Millisecond)
	if err := mgr.Heartbeat(ctx, "s-u1"); err != nil {
		t.Fatalf("心跳失败: %v", err)
	}
	after, _ := store.SessionInfo(ctx, "s-u1")
	if !after.LastHeartbeatAt.After(before.LastHeartbeatAt) {
		t.Fatalf("心跳时间戳未刷新")
	}
}
