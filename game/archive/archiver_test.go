package archive

import (
	"testing"
	"time"

	"github.com/JackieWYB/majiang-sub001/game/engine"
	"github.com/JackieWYB/majiang-sub001/game/rules"
	"github.com/JackieWYB/majiang-sub001/game/tile"
)

func TestBuildRecord(t *testing.T) {
	started := time.Now().Add(-10 * time.Minute)
	ended := time.Now()
	st := &engine.GameState{
		RoomID:        "100001",
		GameID:        "g-1",
		Round:         1,
		GameStartedAt: started,
		GameEndedAt:   ended,
		Players: []*engine.PlayerState{
			{UserID: "u1", Seat: 0, Dealer: true, Score: 16},
			{UserID: "u2", Seat: 1, Score: -8},
			{UserID: "u3", Seat: 2, Score: -8},
		},
		Actions: []engine.ActionRecord{
			{Seq: 1, UserID: "u1", Action: engine.Action{Kind: engine.ActDiscard, Tile: tile.Tile{Suit: tile.SuitWan, Rank: 5}}, At: started},
			{Seq: 2, UserID: "u1", Action: engine.Action{Kind: engine.ActHu, Tile: tile.Tile{Suit: tile.SuitWan, Rank: 3}, SelfDraw: true}, At: ended},
		},
		Settlement: &rules.SettlementResult{
			GameEndReason: rules.EndReasonHu,
			PlayerResults: []rules.PlayerResult{
				{UserID: "u1", Seat: 0, IsWinner: true, IsDealer: true, Fan: 2, HandTypes: []string{rules.HuBasicWin, rules.HuSelfDraw}, FinalScore: 16},
				{UserID: "u2", Seat: 1, FinalScore: -8},
				{UserID: "u3", Seat: 2, FinalScore: -8},
			},
			FinalScores: map[string]int{"u1": 16, "u2": -8, "u3": -8},
		},
	}

	rec := BuildRecord(st)
	if rec.GameID != "g-1" || rec.RoomID != "100001" || rec.Round != 1 {
		t.Fatalf("归档头部不符: %+v", rec)
	}
	if !rec.StartedAt.Equal(started) || !rec.EndedAt.Equal(ended) {
		t.Fatalf("时间戳不符")
	}
	if len(rec.Players) != 3 {
		t.Fatalf("玩家数 = %d", len(rec.Players))
	}
	u1 := rec.Players[0]
	if !u1.Winner || u1.Fan != 2 || u1.HandType != rules.HuBasicWin || u1.Delta != 16 {
		t.Fatalf("赢家归档不符: %+v", u1)
	}
	if rec.Players[1].Winner || rec.Players[1].Delta != -8 {
		t.Fatalf("输家归档不符: %+v", rec.Players[1])
	}
	if len(rec.Actions) != 2 {
		t.Fatalf("动作流水条数 = %d", len(rec.Actions))
	}
	if rec.Actions[0].Kind != "DISCARD" || rec.Actions[0].Tile != "5W" {
		t.Fatalf("动作流水不符: %+v", rec.Actions[0])
	}
	if rec.Settlement == nil || rec.Settlement.GameEndReason != rules.EndReasonHu {
		t.Fatalf("结算表缺失")
	}
}
