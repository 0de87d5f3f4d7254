package engine

import (
	"time"

	"github.com/JackieWYB/majiang-sub001/game/rules"
	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// PlayerView 快照中的单个玩家，只有收件人自己的手牌可见
type PlayerView struct {
	UserID    string       `json:"userId"`
	Seat      int          `json:"seat"`
	Dealer    bool         `json:"dealer"`
	Status    PlayerStatus `json:"status"`
	HandCount int          `json:"handCount"`
	Hand      []string     `json:"hand,omitempty"`
	Melds     []rules.Meld `json:"melds,omitempty"`
	Score     int          `json:"score"`
	Available []ActionKind `json:"availableActions,omitempty"`
}

// WindowView 响应窗口的外发视图
type WindowView struct {
	Tile      string       `json:"tile"`
	Discarder string       `json:"discarder"`
	Deadline  time.Time    `json:"deadline"`
	OwnActs   []ActionKind `json:"ownActions,omitempty"`
	RobKong   bool         `json:"robKong,omitempty"`
}

// GameSnapshot 发给客户端的非权威视图
type GameSnapshot struct {
	RoomID             string                  `json:"roomId"`
	GameID             string                  `json:"gameId"`
	ForUser            string                  `json:"forUser"`
	Phase              Phase                   `json:"phase"`
	Round              int                     `json:"round"`
	CurrentPlayerIndex int                     `json:"currentPlayerIndex"`
	CurrentUserID      string                  `json:"currentUserId,omitempty"`
	WallCount          int                     `json:"wallCount"`
	DiscardPile        []string                `json:"discardPile"`
	LastDiscard        *Discard                `json:"lastDiscard,omitempty"`
	TurnDeadline       time.Time               `json:"turnDeadline"`
	Window             *WindowView             `json:"window,omitempty"`
	Players            []PlayerView            `json:"players"`
	Settlement         *rules.SettlementResult `json:"settlement,omitempty"`
}

// snapshotFor 生成 userID 视角的脱敏快照
func snapshotFor(st *GameState, userID string) *GameSnapshot {
	snap := &GameSnapshot{
		RoomID:             st.RoomID,
		GameID:             st.GameID,
		ForUser:            userID,
		Phase:              st.Phase,
		Round:              st.Round,
		CurrentPlayerIndex: st.CurrentPlayerIndex,
		WallCount:          len(st.Wall),
		DiscardPile:        encodeTiles(st.DiscardPile),
		LastDiscard:        st.LastDiscard,
		TurnDeadline:       st.TurnDeadline,
		Settlement:         st.Settlement,
	}
	if cp := st.CurrentPlayer(); cp != nil {
		snap.CurrentUserID = cp.UserID
	}
	if w := st.Window; w != nil {
		snap.Window = &WindowView{
			Tile:      w.Tile.String(),
			Discarder: w.Discarder,
			Deadline:  w.Deadline,
			OwnActs:   w.Eligible[userID],
			RobKong:   w.RobKong,
		}
	}
	for _, p := range st.Players {
		pv := PlayerView{
			UserID:    p.UserID,
			Seat:      p.Seat,
			Dealer:    p.Dealer,
			Status:    p.Status,
			HandCount: len(p.Hand),
			Melds:     p.Melds,
			Score:     p.Score,
		}
		if p.UserID == userID {
			sorted := make([]tile.Tile, len(p.Hand))
			copy(sorted, p.Hand)
			tile.Sort(sorted)
			pv.Hand = encodeTiles(sorted)
			pv.Available = p.Available
		}
		snap.Players = append(snap.Players, pv)
	}
	return snap
}

func encodeTiles(ts []tile.Tile) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
