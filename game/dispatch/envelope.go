package dispatch

import (
	"encoding/json"

	"github.com/JackieWYB/majiang-sub001/game/engine"
)

// MsgType 信封类型
type MsgType string

const (
	TypeRequest   MsgType = "REQUEST"
	TypeResponse  MsgType = "RESPONSE"
	TypeError     MsgType = "ERROR"
	TypeEvent     MsgType = "EVENT"
	TypeHeartbeat MsgType = "HEARTBEAT"
)

// Envelope 双向统一信封，REQUEST 必带 requestId 并以 RESPONSE/ERROR 回执
type Envelope struct {
	Type      MsgType         `json:"type"`
	Command   string          `json:"command,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	RoomID    string          `json:"roomId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Decode 解析并做信封级校验
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, engine.NewError(engine.CodeInvalidRequest, "信封解析失败: %v", err)
	}
	switch env.Type {
	case TypeRequest:
		if env.RequestID == "" {
			return Envelope{}, engine.NewError(engine.CodeInvalidRequest, "REQUEST 缺少 requestId")
		}
		if env.Command == "" {
			return Envelope{}, engine.NewError(engine.CodeInvalidRequest, "REQUEST 缺少 command")
		}
	case TypeError:
		if env.Error == "" {
			return Envelope{}, engine.NewError(engine.CodeInvalidRequest, "ERROR 缺少错误描述")
		}
	case TypeResponse, TypeEvent, TypeHeartbeat:
	default:
		return Envelope{}, engine.NewError(engine.CodeInvalidRequest, "未知信封类型 %q", env.Type)
	}
	return env, nil
}

func marshalData(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
