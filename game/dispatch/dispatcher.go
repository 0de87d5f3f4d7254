package dispatch

import (
	"context"
	"encoding/json"
	"math/rand"

	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/game/engine"
	"github.com/JackieWYB/majiang-sub001/game/room"
	"github.com/JackieWYB/majiang-sub001/game/rules"
	"github.com/JackieWYB/majiang-sub001/game/session"
)

// MemberStore 房间成员集合接口，由 store 包实现
type MemberStore interface {
	AddRoomMember(ctx context.Context, roomID, userID string) error
	RemoveRoomMember(ctx context.Context, roomID, userID string) error
	RoomMembers(ctx context.Context, roomID string) ([]string, error)
	ClearRoomMembers(ctx context.Context, roomID string) error
}

// RuleResolver 把 ruleId 解析为房间规则配置
type RuleResolver func(ruleID string) (rules.RoomConfig, error)

// Dispatcher 入站指令分发器：解信封、译指令、路由到房间生命周期或引擎门面
type Dispatcher struct {
	rooms      *room.Manager
	engines    *engine.Registry
	sessions   *session.Manager
	sender     *Sender
	membership MemberStore
	states     engine.StateStore
	rule       RuleResolver
	seed       func() int64
}

func NewDispatcher(rooms *room.Manager, engines *engine.Registry, sessions *session.Manager,
	sender *Sender, membership MemberStore, states engine.StateStore, rule RuleResolver) *Dispatcher {
	if rule == nil {
		rule = func(string) (rules.RoomConfig, error) { return rules.DefaultConfig(), nil }
	}
	return &Dispatcher{
		rooms:      rooms,
		engines:    engines,
		sessions:   sessions,
		sender:     sender,
		membership: membership,
		states:     states,
		rule:       rule,
		seed:       func() int64 { return rand.Int63() },
	}
}

// engineFor 取房间引擎；进程重启或本地缓存失效时从存储恢复
func (d *Dispatcher) engineFor(ctx context.Context, roomID string) (*engine.Engine, error) {
	if e, ok := d.engines.Get(roomID); ok {
		return e, nil
	}
	if d.states != nil {
		if ok, err := d.states.Exists(ctx, roomID); err == nil && ok {
			e := d.engines.Obtain(roomID)
			if err := e.Recover(ctx); err == nil {
				return e, nil
			}
			d.engines.Remove(roomID)
		}
	}
	return nil, engine.NewError(engine.CodeRoomGone, "房间 %s 无对局", roomID)
}

// Handle 处理一条入站消息；REQUEST 恰好产生一条 RESPONSE 或 ERROR
func (d *Dispatcher) Handle(ctx context.Context, userID, sessionID string, raw []byte) {
	env, err := Decode(raw)
	if err != nil {
		d.sender.Respond(userID, "", "", "", failedResult(err))
		return
	}

	switch env.Type {
	case TypeHeartbeat:
		if err := d.sessions.Heartbeat(ctx, sessionID); err != nil {
			log.Debug("会话 %s 心跳失败: %v", sessionID, err)
		}
	case TypeRequest:
		res := d.handleRequest(ctx, userID, sessionID, env)
		d.sender.Respond(userID, env.RequestID, env.Command, env.RoomID, res)
	default:
		// 服务端不消费 RESPONSE/EVENT/ERROR
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, userID, sessionID string, env Envelope) engine.ActionResult {
	switch env.Command {
	case CmdCreateRoom:
		return d.createRoom(ctx, userID, env)
	case CmdJoinRoom:
		return d.joinRoom(ctx, userID, env)
	case CmdLeaveRoom:
		return d.leaveRoom(ctx, userID, env)
	case CmdReady:
		return d.ready(userID, env)
	case CmdStartGame:
		return d.startGame(env)
	case CmdNextRound:
		return d.nextRound(ctx, userID, env)
	case CmdDissolveRoom:
		return d.dissolveRoom(ctx, userID, env)
	case CmdReconnect:
		return d.reconnect(ctx, sessionID, env)
	case CmdSnapshot:
		return d.snapshot(ctx, userID, env)
	}
	return d.gameAction(ctx, userID, env)
}

func (d *Dispatcher) createRoom(ctx context.Context, userID string, env Envelope) engine.ActionResult {
	var p struct {
		RuleID string `json:"ruleId"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return failedResult(engine.NewError(engine.CodeInvalidRequest, "载荷解析失败: %v", err))
		}
	}
	cfg, err := d.rule(p.RuleID)
	if err != nil {
		return failedResult(engine.NewError(engine.CodeConfigInvalid, "未知规则 %q", p.RuleID))
	}
	r, err := d.rooms.CreateRoom(userID, p.RuleID, cfg)
	if err != nil {
		return failedResult(err)
	}
	if err := d.membership.AddRoomMember(ctx, r.ID, userID); err != nil {
		log.Warn("房间 %s 成员写入失败: %v", r.ID, err)
	}
	return okData(r)
}

func (d *Dispatcher) joinRoom(ctx context.Context, userID string, env Envelope) engine.ActionResult {
	r, seat, err := d.rooms.JoinRoom(env.RoomID, userID)
	if err != nil {
		return failedResult(err)
	}
	if err := d.membership.AddRoomMember(ctx, r.ID, userID); err != nil {
		log.Warn("房间 %s 成员写入失败: %v", r.ID, err)
	}
	d.sender.BroadcastToRoom(r.ID, engine.Event{
		Type:   engine.EventRoom,
		RoomID: r.ID,
		Data:   map[string]any{"event": engine.RoomEvPlayerJoined, "userId": userID, "seat": seat},
	}, userID)
	return okData(map[string]any{"room": r, "seat": seat})
}

func (d *Dispatcher) leaveRoom(ctx context.Context, userID string, env Envelope) engine.ActionResult {
	if err := d.rooms.LeaveRoom(env.RoomID, userID); err != nil {
		return failedResult(err)
	}
	if err := d.membership.RemoveRoomMember(ctx, env.RoomID, userID); err != nil {
		log.Warn("房间 %s 成员移除失败: %v", env.RoomID, err)
	}
	if _, alive := d.rooms.Room(env.RoomID); !alive {
		d.teardownRoom(ctx, env.RoomID)
		return okData(nil)
	}
	d.sender.BroadcastToRoom(env.RoomID, engine.Event{
		Type:   engine.EventRoom,
		RoomID: env.RoomID,
		Data:   map[string]any{"event": engine.RoomEvPlayerLeft, "userId": userID},
	}, userID)
	return okData(nil)
}

func (d *Dispatcher) ready(userID string, env Envelope) engine.ActionResult {
	var p struct {
		Ready bool `json:"ready"`
	}
	p.Ready = true
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return failedResult(engine.NewError(engine.CodeInvalidRequest, "载荷解析失败: %v", err))
		}
	}
	r, err := d.rooms.Ready(env.RoomID, userID, p.Ready)
	if err != nil {
		return failedResult(err)
	}
	return okData(map[string]any{"status": r.Status})
}

func (d *Dispatcher) startGame(env Envelope) engine.ActionResult {
	players, cfg, err := d.rooms.Start(env.RoomID)
	if err != nil {
		return failedResult(err)
	}
	if err := d.engines.Obtain(env.RoomID).Start(players, cfg, d.seed()); err != nil {
		return failedResult(err)
	}
	return okData(nil)
}

// nextRound 结算阶段续局，累计分数沿用
func (d *Dispatcher) nextRound(ctx context.Context, userID string, env Envelope) engine.ActionResult {
	r, ok := d.rooms.RoomByUser(userID)
	if !ok || r.ID != env.RoomID {
		return failedResult(engine.NewError(engine.CodeAccessDenied, "用户 %s 不在房间 %s", userID, env.RoomID))
	}
	e, err := d.engineFor(ctx, env.RoomID)
	if err != nil {
		return failedResult(err)
	}
	if err := e.StartNextRound(d.seed()); err != nil {
		return failedResult(err)
	}
	d.rooms.Resume(env.RoomID)
	return okData(nil)
}

func (d *Dispatcher) dissolveRoom(ctx context.Context, userID string, env Envelope) engine.ActionResult {
	if err := d.rooms.DissolveRoom(env.RoomID, userID); err != nil {
		return failedResult(err)
	}
	d.sender.BroadcastToRoom(env.RoomID, engine.Event{
		Type:   engine.EventRoom,
		RoomID: env.RoomID,
		Data:   map[string]any{"event": engine.RoomEvRoomDissolved},
	}, "")
	d.teardownRoom(ctx, env.RoomID)
	return okData(nil)
}

func (d *Dispatcher) reconnect(ctx context.Context, sessionID string, env Envelope) engine.ActionResult {
	var p struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &p); err != nil || p.Token == "" {
		return failedResult(engine.NewError(engine.CodeInvalidRequest, "缺少 token"))
	}
	res, err := d.sessions.Reconnect(ctx, p.Token, sessionID)
	if err != nil {
		return failedResult(err)
	}
	return okData(res)
}

func (d *Dispatcher) snapshot(ctx context.Context, userID string, env Envelope) engine.ActionResult {
	e, err := d.engineFor(ctx, env.RoomID)
	if err != nil {
		return failedResult(err)
	}
	snap, err := e.SnapshotFor(userID)
	if err != nil {
		return failedResult(err)
	}
	return okData(snap)
}

func (d *Dispatcher) gameAction(ctx context.Context, userID string, env Envelope) engine.ActionResult {
	act, err := ParseAction(env.Command, env.Data)
	if err != nil {
		return failedResult(err)
	}
	e, err := d.engineFor(ctx, env.RoomID)
	if err != nil {
		return failedResult(err)
	}
	d.rooms.Touch(env.RoomID)
	return e.SubmitAction(userID, act)
}

// teardownRoom 房间消亡后的清理：掉线记录、成员集合与引擎一并移除
func (d *Dispatcher) teardownRoom(ctx context.Context, roomID string) {
	if members, err := d.membership.RoomMembers(ctx, roomID); err == nil {
		for _, u := range members {
			d.sessions.Forget(u)
		}
	}
	if err := d.membership.ClearRoomMembers(ctx, roomID); err != nil {
		log.Warn("房间 %s 成员清理失败: %v", roomID, err)
	}
	d.engines.Remove(roomID)
}

// SweepInactiveRooms 周期性闲置回收入口，由 app 层起 ticker 驱动
func (d *Dispatcher) SweepInactiveRooms(ctx context.Context) {
	for _, roomID := range d.rooms.SweepInactive() {
		log.Info("闲置房间 %s 已回收", roomID)
		d.sender.BroadcastToRoom(roomID, engine.Event{
			Type:   engine.EventRoom,
			RoomID: roomID,
			Data:   map[string]any{"event": engine.RoomEvRoomDissolved, "reason": "inactivity"},
		}, "")
		d.teardownRoom(ctx, roomID)
	}
}

func okData(data any) engine.ActionResult {
	return engine.ActionResult{Success: true, Data: data}
}

func failedResult(err error) engine.ActionResult {
	if e, ok := err.(*engine.Error); ok {
		return engine.ActionResult{Code: e.Code, Message: e.Message}
	}
	return engine.ActionResult{Code: engine.CodeInvalidRequest, Message: err.Error()}
}
