package engine

import (
	"time"

	"github.com/JackieWYB/majiang-sub001/game/rules"
	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// Phase 对局阶段
type Phase string

const (
	PhaseWaiting    Phase = "WAITING"
	PhasePlaying    Phase = "PLAYING"
	PhaseSettlement Phase = "SETTLEMENT"
	PhaseFinished   Phase = "FINISHED"
)

// PlayerStatus 玩家状态
type PlayerStatus string

const (
	StatusWaiting       PlayerStatus = "WAITING"
	StatusReady         PlayerStatus = "READY"
	StatusPlaying       PlayerStatus = "PLAYING"
	StatusWaitingTurn   PlayerStatus = "WAITING_TURN"
	StatusWaitingAction PlayerStatus = "WAITING_ACTION"
	StatusTrustee       PlayerStatus = "TRUSTEE"
	StatusDisconnected  PlayerStatus = "DISCONNECTED"
	StatusFinished      PlayerStatus = "FINISHED"
)

// trusteePinThreshold 连续超时达到该值后锁定托管
const trusteePinThreshold = 3

// PlayerState 单个玩家的权威状态，由所在房间的引擎独占修改
type PlayerState struct {
	UserID              string       `json:"userId"`
	Seat                int          `json:"seat"`
	Hand                []tile.Tile  `json:"hand"`
	Melds               []rules.Meld `json:"melds"`
	Dealer              bool         `json:"dealer"`
	Status              PlayerStatus `json:"status"`
	ConsecutiveTimeouts int          `json:"consecutiveTimeouts"`
	LastActionAt        time.Time    `json:"lastActionAt"`
	Available           []ActionKind `json:"availableActions"`
	Score               int          `json:"score"`
	LastDrawn           *tile.Tile   `json:"lastDrawn,omitempty"`
	ActionCount         int          `json:"actionCount"`
}

// HandCount 手牌计数数组
func (p *PlayerState) HandCount() tile.Hand27 {
	return tile.Count(p.Hand)
}

// CanAct 动作标签是否在可用集内
func (p *PlayerState) CanAct(k ActionKind) bool {
	for _, a := range p.Available {
		if a == k {
			return true
		}
	}
	return false
}

// removeFromHand 从手牌移除指定牌，任意一张缺失则不修改并返回 false
func (p *PlayerState) removeFromHand(ts ...tile.Tile) bool {
	h := p.HandCount()
	for _, t := range ts {
		if h[t.Index()] == 0 {
			return false
		}
		h[t.Index()]--
	}
	out := p.Hand[:0]
	need := tile.Count(ts)
	for _, t := range p.Hand {
		if need[t.Index()] > 0 {
			need[t.Index()]--
			continue
		}
		out = append(out, t)
	}
	p.Hand = out
	return true
}

// Discard 一次弃牌记录
type Discard struct {
	Tile   tile.Tile `json:"tile"`
	UserID string    `json:"userId"`
}

// PendingActionWindow 弃牌（或加杠）后开启的响应窗口
// RobKong 为真时窗口挂在一次加杠上，HU 即抢杠
type PendingActionWindow struct {
	Tile      tile.Tile               `json:"tile"`
	Discarder string                  `json:"discarder"`
	Eligible  map[string][]ActionKind `json:"eligible"`
	Deadline  time.Time               `json:"deadline"`
	Arrivals  map[string]Action       `json:"arrivals"`
	Epoch     uint64                  `json:"epoch"`
	RobKong   bool                    `json:"robKong,omitempty"`
}

func (w *PendingActionWindow) eligibleFor(userID string, k ActionKind) bool {
	for _, a := range w.Eligible[userID] {
		if a == k {
			return true
		}
	}
	return false
}

func (w *PendingActionWindow) allResponded() bool {
	for u := range w.Eligible {
		if _, ok := w.Arrivals[u]; !ok {
			return false
		}
	}
	return true
}

// ActionRecord 动作流水，用于归档与确定性重放
type ActionRecord struct {
	Seq    int       `json:"seq"`
	UserID string    `json:"userId"`
	Action Action    `json:"action"`
	At     time.Time `json:"at"`
}

// GameState 一张桌子的权威对局状态，显式结构化以便序列化与版本升级
type GameState struct {
	RoomID             string                   `json:"roomId"`
	GameID             string                   `json:"gameId"`
	Phase              Phase                    `json:"phase"`
	Players            []*PlayerState           `json:"players"`
	CurrentPlayerIndex int                      `json:"currentPlayerIndex"`
	DealerUserID       string                   `json:"dealerUserId"`
	Wall               []tile.Tile              `json:"wall"`
	DiscardPile        []tile.Tile              `json:"discardPile"`
	LastDiscard        *Discard                 `json:"lastDiscard,omitempty"`
	Window             *PendingActionWindow     `json:"window,omitempty"`
	Round              int                      `json:"round"`
	TotalTurns         int                      `json:"totalTurns"`
	GameStartedAt      time.Time                `json:"gameStartedAt"`
	GameEndedAt        time.Time                `json:"gameEndedAt,omitempty"`
	TurnStartedAt      time.Time                `json:"turnStartedAt"`
	TurnDeadline       time.Time                `json:"turnDeadline"`
	TurnEpoch          uint64                   `json:"turnEpoch"`
	WindowEpoch        uint64                   `json:"windowEpoch"`
	Seed               int64                    `json:"seed"`
	Config             rules.RoomConfig         `json:"config"`
	Gangs              []rules.GangEvent        `json:"gangs,omitempty"`
	Actions            []ActionRecord           `json:"actions,omitempty"`
	Settlement         *rules.SettlementResult  `json:"settlement,omitempty"`
}

// PlayerByID 按 userId 找玩家
func (st *GameState) PlayerByID(userID string) *PlayerState {
	for _, p := range st.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// CurrentPlayer 当前回合玩家
func (st *GameState) CurrentPlayer() *PlayerState {
	if st.CurrentPlayerIndex < 0 || st.CurrentPlayerIndex >= len(st.Players) {
		return nil
	}
	return st.Players[st.CurrentPlayerIndex]
}

// nextSeat 顺时针下一座位
func (st *GameState) nextSeat(seat int) int {
	return (seat + 1) % len(st.Players)
}

// seatDistance 从 from 顺时针到 to 的距离，窗口平级裁决用
func (st *GameState) seatDistance(from, to int) int {
	n := len(st.Players)
	return (to - from + n) % n
}

// checkConservation 牌张守恒：墙 + 弃牌堆 + 手牌 + 副露 等于起始牌组
// 抢杠回滚窗口期间第 4 张杠牌暂存于窗口，计入在内
func (st *GameState) checkConservation() bool {
	var got tile.Hand27
	for _, t := range st.Wall {
		got[t.Index()]++
	}
	for _, t := range st.DiscardPile {
		got[t.Index()]++
	}
	for _, p := range st.Players {
		for _, t := range p.Hand {
			got[t.Index()]++
		}
		for _, m := range p.Melds {
			for _, t := range m.Tiles {
				got[t.Index()]++
			}
		}
	}
	if st.Window != nil && st.Window.RobKong {
		got[st.Window.Tile.Index()]++
	}

	suits, err := st.Config.Tiles.Suits()
	if err != nil {
		return false
	}
	var want tile.Hand27
	for _, s := range suits {
		for r := tile.MinRank; r <= tile.MaxRank; r++ {
			want[(tile.Tile{Suit: s, Rank: r}).Index()] = tile.NumCopies
		}
	}
	return got == want
}
