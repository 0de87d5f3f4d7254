package engine

import "fmt"

// 错误码，对外响应与日志共用
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeRoomNotFound       = "ROOM_NOT_FOUND"
	CodeRoomNotReady       = "ROOM_NOT_READY"
	CodeRoomClosed         = "ROOM_CLOSED"
	CodeRoomFull           = "ROOM_FULL"
	CodeRoomBusy           = "ROOM_BUSY"
	CodeRoomGone           = "ROOM_GONE"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeOwnerQuotaExceeded = "OWNER_QUOTA_EXCEEDED"
	CodeOwnerNotFound      = "OWNER_NOT_FOUND"
	CodeUserAlreadyInRoom  = "USER_ALREADY_IN_ROOM"
	CodeUserInOtherRoom    = "USER_IN_OTHER_ROOM"
	CodeNotYourTurn        = "NOT_YOUR_TURN"
	CodeActionNotAvailable = "ACTION_NOT_AVAILABLE"
	CodeActionInvalid      = "ACTION_INVALID"
	CodeInvalidTile        = "INVALID_TILE"
	CodeInvalidWin         = "INVALID_WIN"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodePlayerCountInvalid = "PLAYER_COUNT_INVALID"
	CodeWallEmpty          = "WALL_EMPTY"
	CodeTransientStore     = "TRANSIENT_STORE_ERROR"
	CodeStateCorrupt       = "STATE_CORRUPT"
	CodeNoDisconnectRecord = "NO_DISCONNECTION_RECORD"
)

// Error 带错误码的业务错误，校验路径一律返回它而不是 panic
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf 取业务错误码，非业务错误归为 STATE_CORRUPT
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeStateCorrupt
}
