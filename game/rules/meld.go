package rules

import (
	"github.com/JackieWYB/majiang-sub001/game/analyzer"
	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// MeldKind 副露类型
type MeldKind string

const (
	MeldPong          MeldKind = "PONG"
	MeldOpenKong      MeldKind = "OPEN_KONG"
	MeldConcealedKong MeldKind = "CONCEALED_KONG"
	MeldUpgradedKong  MeldKind = "UPGRADED_KONG"
	MeldChow          MeldKind = "CHOW"
)

// Meld 一组副露，归属恰好一名玩家
type Meld struct {
	Kind        MeldKind    `json:"kind"`
	Tiles       []tile.Tile `json:"tiles"`
	ClaimedFrom string      `json:"claimedFrom,omitempty"` // 被吃/碰/明杠的出牌者
}

// IsKong 是否杠
func (m Meld) IsKong() bool {
	return m.Kind == MeldOpenKong || m.Kind == MeldConcealedKong || m.Kind == MeldUpgradedKong
}

// IsConcealed 是否不暴露手牌信息（暗杠不破门清）
func (m Meld) IsConcealed() bool {
	return m.Kind == MeldConcealedKong
}

// KongKindToMeld 杠类型到副露类型
func KongKindToMeld(k analyzer.KongKind) MeldKind {
	switch k {
	case analyzer.KongOpen:
		return MeldOpenKong
	case analyzer.KongConcealed:
		return MeldConcealedKong
	default:
		return MeldUpgradedKong
	}
}

// NewPong 由手里 2 张 + 打出的 1 张组成
func NewPong(t tile.Tile, claimedFrom string) Meld {
	return Meld{Kind: MeldPong, Tiles: []tile.Tile{t, t, t}, ClaimedFrom: claimedFrom}
}

// NewKong 4 张同牌
func NewKong(kind MeldKind, t tile.Tile, claimedFrom string) Meld {
	return Meld{Kind: kind, Tiles: []tile.Tile{t, t, t, t}, ClaimedFrom: claimedFrom}
}

// NewChow 升序顺子
func NewChow(seq [3]tile.Tile, claimedFrom string) Meld {
	return Meld{Kind: MeldChow, Tiles: []tile.Tile{seq[0], seq[1], seq[2]}, ClaimedFrom: claimedFrom}
}
