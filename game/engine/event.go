package engine

import "context"

// 出站事件类型
const (
	EventRoom       = "ROOM_EVENT"
	EventTurn       = "TURN"
	EventAction     = "ACTION"
	EventSnapshot   = "SNAPSHOT"
	EventSettlement = "SETTLEMENT"
)

// 房间级事件子类型
const (
	RoomEvPlayerJoined       = "PLAYER_JOINED"
	RoomEvPlayerLeft         = "PLAYER_LEFT"
	RoomEvPlayerDisconnected = "PLAYER_DISCONNECTED"
	RoomEvPlayerReconnected  = "PLAYER_RECONNECTED"
	RoomEvRoomDissolved      = "ROOM_DISSOLVED"
)

// Event 引擎产生的出站事件，发送在临界区之外异步完成
type Event struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Data   any    `json:"data,omitempty"`
}

// Emitter 出站扇出的窄接口，由 dispatch 包实现
// 同一房间/用户内的发送保持引擎产生顺序
type Emitter interface {
	SendToUser(userID string, ev Event)
	BroadcastToRoom(roomID string, ev Event, excludeUserID string)
}

// StateStore 权威状态存储的窄接口，由 store 包实现
type StateStore interface {
	Save(ctx context.Context, st *GameState) error
	Load(ctx context.Context, roomID string) (*GameState, error)
	Exists(ctx context.Context, roomID string) (bool, error)
	Delete(ctx context.Context, roomID string) error
	RefreshTTL(ctx context.Context, roomID string) error
}
