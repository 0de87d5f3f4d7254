package app

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/game/dispatch"
	"github.com/JackieWYB/majiang-sub001/game/session"
)

// Frame 接入层经 NATS 转发的入站帧
// kind 为空或 data 时 payload 是客户端信封，connect/disconnect 是连接事件
type Frame struct {
	UserID    string          `json:"userId"`
	SessionID string          `json:"sessionId"`
	Kind      string          `json:"kind,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	frameData       = "data"
	frameConnect    = "connect"
	frameDisconnect = "disconnect"
)

// Worker 入站消费协程：订阅本节点主题，帧按到达顺序处理
type Worker struct {
	conn       *nats.Conn
	subject    string
	dispatcher *dispatch.Dispatcher
	sessions   *session.Manager

	readChan chan []byte
	sub      *nats.Subscription
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(conn *nats.Conn, subject string, dispatcher *dispatch.Dispatcher, sessions *session.Manager) *Worker {
	return &Worker{
		conn:       conn,
		subject:    subject,
		dispatcher: dispatcher,
		sessions:   sessions,
		readChan:   make(chan []byte, 1024),
		stop:       make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	var err error
	w.sub, err = w.conn.Subscribe(w.subject, func(msg *nats.Msg) {
		select {
		case w.readChan <- msg.Data:
		default:
			log.Warn("入站队列已满, 丢弃一帧")
		}
	})
	if err != nil {
		return err
	}
	log.Info("入站订阅就绪, 主题 %s", w.subject)

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case raw := <-w.readChan:
			w.handle(ctx, raw)
		}
	}
}

func (w *Worker) handle(ctx context.Context, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Warn("入站帧解析失败: %v", err)
		return
	}
	if f.UserID == "" || f.SessionID == "" {
		log.Warn("入站帧缺少用户或会话标识")
		return
	}

	switch f.Kind {
	case frameConnect:
		if err := w.sessions.Connect(ctx, f.SessionID, f.UserID, ""); err != nil {
			log.Warn("用户 %s 建连失败: %v", f.UserID, err)
		}
	case frameDisconnect:
		if err := w.sessions.Disconnect(ctx, f.SessionID); err != nil {
			log.Debug("会话 %s 断线处理: %v", f.SessionID, err)
		}
	case "", frameData:
		w.dispatcher.Handle(ctx, f.UserID, f.SessionID, f.Payload)
	default:
		log.Warn("未知帧类型 %q", f.Kind)
	}
}

func (w *Worker) Close() {
	if w.sub != nil {
		if err := w.sub.Unsubscribe(); err != nil {
			log.Warn("取消订阅失败: %v", err)
		}
	}
	close(w.stop)
	w.wg.Wait()
}
