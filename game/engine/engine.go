package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/game/analyzer"
	"github.com/JackieWYB/majiang-sub001/game/rules"
)

// Options 引擎运行参数
type Options struct {
	WriteBudget time.Duration // 单次存储写入预算
	QueueDepth  int           // 房间任务队列深度，超出拒绝 ROOM_BUSY
	SaveRetries int           // 存储写入重试上限

	// OnGameEnd 一局结算后的回调，在房间临界区内同步调用，
	// 耗时工作（归档落库等）须由回调方自行转异步
	OnGameEnd func(st *GameState)
}

// DefaultOptions 与进程配置默认值保持一致
func DefaultOptions() Options {
	return Options{
		WriteBudget: 100 * time.Millisecond,
		QueueDepth:  256,
		SaveRetries: 3,
	}
}

func (o Options) normalize() Options {
	if o.WriteBudget <= 0 {
		o.WriteBudget = 100 * time.Millisecond
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 256
	}
	if o.SaveRetries <= 0 {
		o.SaveRetries = 3
	}
	return o
}

// StartPlayer 开局时的入座玩家
type StartPlayer struct {
	UserID string
	Seat   int
}

// Engine 一张桌子的引擎门面，房间内单线程协作：
// 所有修改通过 lane 串行执行，定时器到期同样投递到 lane
type Engine struct {
	roomID string
	opts   Options
	store  StateStore
	emit   Emitter
	ana    *analyzer.Analyzer

	lane chan func()
	stop chan struct{}
	once sync.Once

	// 以下字段仅在 lane 内读写
	st          *GameState
	turnTimer   *time.Timer
	windowTimer *time.Timer
}

// New 创建引擎并启动其执行协程
func New(roomID string, store StateStore, emit Emitter, opts Options) *Engine {
	e := &Engine{
		roomID: roomID,
		opts:   opts.normalize(),
		store:  store,
		emit:   emit,
		ana:    analyzer.NewAnalyzer(),
		stop:   make(chan struct{}),
	}
	e.lane = make(chan func(), e.opts.QueueDepth)
	go e.run()
	return e
}

func (e *Engine) run() {
	for {
		select {
		case fn := <-e.lane:
			fn()
		case <-e.stop:
			return
		}
	}
}

// post 投递任务，队列满返回 ROOM_BUSY
func (e *Engine) post(fn func()) error {
	select {
	case e.lane <- fn:
		return nil
	case <-e.stop:
		return NewError(CodeRoomGone, "房间 %s 已关闭", e.roomID)
	default:
		return NewError(CodeRoomBusy, "房间 %s 队列已满", e.roomID)
	}
}

// call 投递并等待执行完成
func (e *Engine) call(fn func()) error {
	done := make(chan struct{})
	if err := e.post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-e.stop:
		return NewError(CodeRoomGone, "房间 %s 已关闭", e.roomID)
	}
}

// Close 停止引擎，未执行的任务被丢弃
func (e *Engine) Close() {
	e.once.Do(func() {
		close(e.stop)
	})
}

// RoomID 引擎所属房间
func (e *Engine) RoomID() string {
	return e.roomID
}

// Start 开局：发牌、定庄、计算庄家可用动作并启动回合计时
func (e *Engine) Start(players []StartPlayer, cfg rules.RoomConfig, seed int64) error {
	var out error
	err := e.call(func() {
		out = e.doStart(players, cfg, seed)
	})
	if err != nil {
		return err
	}
	return out
}

// SubmitAction 提交动作，校验通过后原子应用
func (e *Engine) SubmitAction(userID string, act Action) ActionResult {
	var res ActionResult
	if err := e.call(func() {
		res = e.doSubmit(userID, act, false)
	}); err != nil {
		return failResult(err)
	}
	return res
}

// SnapshotFor 生成脱敏快照：仅自己的手牌可见
func (e *Engine) SnapshotFor(userID string) (*GameSnapshot, error) {
	var (
		snap *GameSnapshot
		out  error
	)
	if err := e.call(func() {
		if e.st == nil {
			out = NewError(CodeRoomGone, "房间 %s 无对局", e.roomID)
			return
		}
		snap = snapshotFor(e.st, userID)
	}); err != nil {
		return nil, err
	}
	return snap, out
}

// Inspect 在房间临界区内读取状态，测试与监控用
func (e *Engine) Inspect(fn func(st *GameState)) error {
	return e.call(func() {
		fn(e.st)
	})
}

// StartNextRound 结算后进入下一局，局数达到上限返回错误
func (e *Engine) StartNextRound(seed int64) error {
	var out error
	if err := e.call(func() {
		out = e.doStartNextRound(seed)
	}); err != nil {
		return err
	}
	return out
}

// Disconnect 会话层通知玩家掉线
func (e *Engine) Disconnect(userID string) error {
	var out error
	if err := e.call(func() {
		out = e.doDisconnect(userID)
	}); err != nil {
		return err
	}
	return out
}

// Reconnect 重连：恢复状态并返回个人快照，幂等
func (e *Engine) Reconnect(userID string) (*GameSnapshot, error) {
	var (
		snap *GameSnapshot
		out  error
	)
	if err := e.call(func() {
		snap, out = e.doReconnect(userID)
	}); err != nil {
		return nil, err
	}
	return snap, out
}

// SetTrustee 宽限期耗尽后把玩家切到托管，对局继续
func (e *Engine) SetTrustee(userID string) error {
	var out error
	if err := e.call(func() {
		out = e.doSetTrustee(userID)
	}); err != nil {
		return err
	}
	return out
}

// MarkFinished 超过最大掉线时长后本局按离场处理
func (e *Engine) MarkFinished(userID string) error {
	var out error
	if err := e.call(func() {
		out = e.doMarkStatus(userID, StatusFinished)
	}); err != nil {
		return err
	}
	return out
}

// Recover 从存储恢复对局并重新武装计时器，用于进程重启或缓存失效
func (e *Engine) Recover(ctx context.Context) error {
	var out error
	if err := e.call(func() {
		st, err := e.store.Load(ctx, e.roomID)
		if err != nil {
			out = NewError(CodeRoomGone, "房间 %s 状态不可恢复: %v", e.roomID, err)
			return
		}
		e.st = st
		if st.Phase == PhasePlaying {
			if st.Window != nil {
				e.armWindowTimer(time.Until(st.Window.Deadline))
			} else {
				e.armTurnTimer(time.Until(st.TurnDeadline))
			}
		}
		log.Info("房间 %s 对局已恢复, phase=%s round=%d", e.roomID, st.Phase, st.Round)
	}); err != nil {
		return err
	}
	return out
}

// verifyIntegrity 牌张守恒被破坏时先回读最近一份落盘状态，
// 落盘状态同样不可用则终止对局并广播解散
func (e *Engine) verifyIntegrity() error {
	if e.st == nil || e.st.checkConservation() {
		return nil
	}
	log.Error("房间 %s 牌张守恒被破坏, game=%s round=%d", e.roomID, e.st.GameID, e.st.Round)

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.WriteBudget)
	defer cancel()
	if prev, err := e.store.Load(ctx, e.roomID); err == nil && prev.checkConservation() {
		e.st = prev
		return NewError(CodeStateCorrupt, "房间 %s 状态异常, 已回滚到最近落盘", e.roomID)
	}

	e.cancelTurnTimer()
	e.cancelWindowTimer()
	e.emit.BroadcastToRoom(e.roomID, Event{
		Type:   EventRoom,
		RoomID: e.roomID,
		Data:   map[string]any{"event": RoomEvRoomDissolved, "reason": "stateCorrupt"},
	}, "")
	e.st = nil
	return NewError(CodeStateCorrupt, "房间 %s 状态不可恢复, 对局终止", e.roomID)
}

// persist 在临界区内落盘，重试耗尽则回读存储回滚内存态
func (e *Engine) persist() error {
	var lastErr error
	for i := 0; i < e.opts.SaveRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.WriteBudget)
		lastErr = e.store.Save(ctx, e.st)
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	log.Error("房间 %s 状态写入失败: %v", e.roomID, lastErr)

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.WriteBudget)
	defer cancel()
	if prev, err := e.store.Load(ctx, e.roomID); err == nil {
		e.st = prev
	}
	return NewError(CodeTransientStore, "状态写入失败: %v", lastErr)
}

func newGameID() string {
	return uuid.NewString()
}
