package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/game/engine"
)

// Publisher 出站发布接口，生产环境由 *nats.Conn 满足
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Members 房间成员集合，由 store 包实现
type Members interface {
	RoomMembers(ctx context.Context, roomID string) ([]string, error)
}

// Sessions 在线判定：用户无会话时 SendToUser 静默丢弃
type Sessions interface {
	SessionByUser(ctx context.Context, userID string) (string, error)
}

// SenderOptions 出站参数
type SenderOptions struct {
	SubjectPrefix string // 用户主题前缀，默认 "connector.user."
	QueueDepth    int    // 每用户出站队列深度
}

func (o SenderOptions) normalize() SenderOptions {
	if o.SubjectPrefix == "" {
		o.SubjectPrefix = "connector.user."
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 128
	}
	return o
}

// Sender 异步出站扇出器，实现 engine.Emitter
// 每用户一条有界队列由单协程排空，保证同一用户内的发送顺序；
// 队列溢出只丢弃快照提示类 EVENT，RESPONSE/ERROR 永不丢弃
type Sender struct {
	pub      Publisher
	members  Members
	sessions Sessions
	opts     SenderOptions

	mu     sync.Mutex
	queues map[string]chan Envelope
	closed bool
	wg     sync.WaitGroup
}

func NewSender(pub Publisher, members Members, sessions Sessions, opts SenderOptions) *Sender {
	return &Sender{
		pub:      pub,
		members:  members,
		sessions: sessions,
		opts:     opts.normalize(),
		queues:   make(map[string]chan Envelope),
	}
}

// SendToUser 引擎事件转信封后入队，离线用户静默跳过
func (s *Sender) SendToUser(userID string, ev engine.Event) {
	if s.sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := s.sessions.SessionByUser(ctx, userID)
		cancel()
		if err != nil {
			return
		}
	}
	s.enqueue(userID, eventEnvelope(ev))
}

// BroadcastToRoom 按成员集合扇出
func (s *Sender) BroadcastToRoom(roomID string, ev engine.Event, excludeUserID string) {
	if s.members == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	users, err := s.members.RoomMembers(ctx, roomID)
	cancel()
	if err != nil {
		log.Warn("房间 %s 成员查询失败: %v", roomID, err)
		return
	}
	for _, u := range users {
		if u == excludeUserID {
			continue
		}
		s.SendToUser(u, ev)
	}
}

// Respond 对一次 REQUEST 的回执，成功 RESPONSE、失败 ERROR
func (s *Sender) Respond(userID, requestID, command, roomID string, res engine.ActionResult) {
	env := Envelope{
		Type:      TypeResponse,
		Command:   command,
		RequestID: requestID,
		RoomID:    roomID,
		Data:      marshalData(res),
	}
	if !res.Success {
		env.Type = TypeError
		env.Error = res.Code + ": " + res.Message
	}
	s.enqueue(userID, env)
}

// Close 停止所有用户队列并等待排空
func (s *Sender) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, q := range s.queues {
		close(q)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// droppable 可丢弃的快照提示类 EVENT
func droppable(env Envelope) bool {
	return env.Type == TypeEvent && env.Command == engine.EventSnapshot
}

func (s *Sender) enqueue(userID string, env Envelope) {
	q := s.queue(userID)
	if q == nil {
		return
	}
	select {
	case q <- env:
		return
	default:
	}
	if droppable(env) {
		log.Warn("用户 %s 出站队列已满, 丢弃快照提示", userID)
		return
	}
	// 回执与普通事件不可丢，阻塞等待队列腾出
	q <- env
}

func (s *Sender) queue(userID string) chan Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if q, ok := s.queues[userID]; ok {
		return q
	}
	q := make(chan Envelope, s.opts.QueueDepth)
	s.queues[userID] = q
	s.wg.Add(1)
	go s.drain(userID, q)
	return q
}

// queueLen 当前积压条数，仅测试使用
func (s *Sender) queueLen(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[userID]; ok {
		return len(q)
	}
	return 0
}

func (s *Sender) drain(userID string, q chan Envelope) {
	defer s.wg.Done()
	subject := s.opts.SubjectPrefix + userID
	for env := range q {
		b, err := json.Marshal(env)
		if err != nil {
			log.Error("信封序列化失败: %v", err)
			continue
		}
		if err := s.pub.Publish(subject, b); err != nil {
			log.Warn("用户 %s 出站发布失败: %v", userID, err)
		}
	}
}

func eventEnvelope(ev engine.Event) Envelope {
	return Envelope{
		Type:    TypeEvent,
		Command: ev.Type,
		RoomID:  ev.RoomID,
		Data:    marshalData(ev.Data),
	}
}
