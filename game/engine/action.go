package engine

import (
	"github.com/JackieWYB/majiang-sub001/game/analyzer"
	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// ActionKind 动作标签，窗口裁决按 HU > KONG > PONG > CHOW > PASS 取优
type ActionKind string

const (
	ActDiscard ActionKind = "DISCARD"
	ActPong    ActionKind = "PONG"
	ActKong    ActionKind = "KONG"
	ActChow    ActionKind = "CHOW"
	ActHu      ActionKind = "HU"
	ActPass    ActionKind = "PASS"
)

// priority 窗口内的优先级，大者胜
func (k ActionKind) priority() int {
	switch k {
	case ActHu:
		return 4
	case ActKong:
		return 3
	case ActPong:
		return 2
	case ActChow:
		return 1
	default:
		return 0
	}
}

// Action 一次提交的动作，按 Kind 解释其余字段
type Action struct {
	Kind        ActionKind        `json:"kind"`
	Tile        tile.Tile         `json:"tile,omitempty"`
	KongKind    analyzer.KongKind `json:"kongKind,omitempty"`
	Sequence    [3]tile.Tile      `json:"sequence,omitempty"`
	ClaimedFrom string            `json:"claimedFrom,omitempty"`
	SelfDraw    bool              `json:"selfDraw,omitempty"`
}

// ActionResult 动作处理结果，REQUEST 必定收到恰好一个
type ActionResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func okResult(data any) ActionResult {
	return ActionResult{Success: true, Data: data}
}

func failResult(err error) ActionResult {
	if e, ok := err.(*Error); ok {
		return ActionResult{Code: e.Code, Message: e.Message}
	}
	return ActionResult{Code: CodeStateCorrupt, Message: err.Error()}
}
