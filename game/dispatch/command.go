package dispatch

import (
	"encoding/json"

	"github.com/JackieWYB/majiang-sub001/game/analyzer"
	"github.com/JackieWYB/majiang-sub001/game/engine"
	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// 游戏内指令
const (
	CmdPlay     = "play"
	CmdDiscard  = "discard"
	CmdPong     = "pong"
	CmdGang     = "gang"
	CmdChow     = "chow"
	CmdHu       = "hu"
	CmdWin      = "win"
	CmdPass     = "pass"
	CmdSnapshot = "snapshot"
)

// 房间生命周期指令
const (
	CmdCreateRoom   = "createRoom"
	CmdJoinRoom     = "joinRoom"
	CmdLeaveRoom    = "leaveRoom"
	CmdReady        = "ready"
	CmdStartGame    = "startGame"
	CmdNextRound    = "nextRound"
	CmdDissolveRoom = "dissolveRoom"
	CmdReconnect    = "reconnect"
)

type playPayload struct {
	Tile string `json:"tile"`
}

type pongPayload struct {
	Tile        string `json:"tile"`
	ClaimedFrom string `json:"claimedFrom"`
}

type gangPayload struct {
	Tile        string `json:"tile"`
	GangType    string `json:"gangType"`
	ClaimedFrom string `json:"claimedFrom,omitempty"`
}

type chowPayload struct {
	Tile        string `json:"tile"`
	Sequence    string `json:"sequence"`
	ClaimedFrom string `json:"claimedFrom"`
}

type huPayload struct {
	WinningTile string `json:"winningTile"`
	SelfDraw    bool   `json:"selfDraw"`
	ClaimedFrom string `json:"claimedFrom,omitempty"`
}

// ParseAction 把指令与载荷翻译成引擎动作
func ParseAction(command string, data json.RawMessage) (engine.Action, error) {
	switch command {
	case CmdPlay, CmdDiscard:
		var p playPayload
		if err := unmarshal(data, &p); err != nil {
			return engine.Action{}, err
		}
		t, err := parseTile(p.Tile)
		if err != nil {
			return engine.Action{}, err
		}
		return engine.Action{Kind: engine.ActDiscard, Tile: t}, nil

	case CmdPong:
		var p pongPayload
		if err := unmarshal(data, &p); err != nil {
			return engine.Action{}, err
		}
		t, err := parseTile(p.Tile)
		if err != nil {
			return engine.Action{}, err
		}
		return engine.Action{Kind: engine.ActPong, Tile: t, ClaimedFrom: p.ClaimedFrom}, nil

	case CmdGang:
		var p gangPayload
		if err := unmarshal(data, &p); err != nil {
			return engine.Action{}, err
		}
		t, err := parseTile(p.Tile)
		if err != nil {
			return engine.Action{}, err
		}
		kind := analyzer.KongKind(p.GangType)
		switch kind {
		case analyzer.KongOpen, analyzer.KongConcealed, analyzer.KongUpgraded:
		default:
			return engine.Action{}, engine.NewError(engine.CodeInvalidRequest, "未知杠型 %q", p.GangType)
		}
		return engine.Action{Kind: engine.ActKong, Tile: t, KongKind: kind, ClaimedFrom: p.ClaimedFrom}, nil

	case CmdChow:
		var p chowPayload
		if err := unmarshal(data, &p); err != nil {
			return engine.Action{}, err
		}
		t, err := parseTile(p.Tile)
		if err != nil {
			return engine.Action{}, err
		}
		seq, err := parseSequence(p.Sequence, t.Suit)
		if err != nil {
			return engine.Action{}, err
		}
		return engine.Action{Kind: engine.ActChow, Tile: t, Sequence: seq, ClaimedFrom: p.ClaimedFrom}, nil

	case CmdHu, CmdWin:
		var p huPayload
		if err := unmarshal(data, &p); err != nil {
			return engine.Action{}, err
		}
		t, err := parseTile(p.WinningTile)
		if err != nil {
			return engine.Action{}, err
		}
		return engine.Action{Kind: engine.ActHu, Tile: t, SelfDraw: p.SelfDraw, ClaimedFrom: p.ClaimedFrom}, nil

	case CmdPass:
		return engine.Action{Kind: engine.ActPass}, nil
	}
	return engine.Action{}, engine.NewError(engine.CodeInvalidRequest, "未知指令 %q", command)
}

func unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return engine.NewError(engine.CodeInvalidRequest, "缺少载荷")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return engine.NewError(engine.CodeInvalidRequest, "载荷解析失败: %v", err)
	}
	return nil
}

func parseTile(s string) (tile.Tile, error) {
	t, err := tile.Parse(s)
	if err != nil {
		return tile.Tile{}, engine.NewError(engine.CodeInvalidTile, "非法牌面 %q", s)
	}
	return t, nil
}

// parseSequence 顺子写作三个连续数字，如 "456"，花色取自所吃的牌
func parseSequence(s string, suit tile.Suit) ([3]tile.Tile, error) {
	var seq [3]tile.Tile
	if len(s) != 3 {
		return seq, engine.NewError(engine.CodeInvalidRequest, "非法顺子 %q", s)
	}
	for i := 0; i < 3; i++ {
		r := int(s[i] - '0')
		if r < tile.MinRank || r > tile.MaxRank {
			return seq, engine.NewError(engine.CodeInvalidRequest, "非法顺子 %q", s)
		}
		seq[i] = tile.Tile{Suit: suit, Rank: r}
	}
	if seq[1].Rank != seq[0].Rank+1 || seq[2].Rank != seq[1].Rank+1 {
		return seq, engine.NewError(engine.CodeInvalidRequest, "顺子 %q 不连续", s)
	}
	return seq, nil
}
