package rules

import (
	"math"

	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// 对局结束原因
const (
	EndReasonHu        = "HU"
	EndReasonDraw      = "DRAW"
	EndReasonDissolved = "DISSOLVED"
)

// SettlePlayer 参与结算的一名玩家
type SettlePlayer struct {
	UserID string `json:"userId"`
	Seat   int    `json:"seat"`
	Dealer bool   `json:"dealer"`
}

// SettleWin 一次有效和牌，multipleWinners 关闭时至多一条
type SettleWin struct {
	UserID string    `json:"userId"`
	Result WinResult `json:"result"`
}

// GangEvent 对局中发生过的一次杠，结算时统一入账
type GangEvent struct {
	UserID      string   `json:"userId"`
	Kind        MeldKind `json:"kind"`
	Tile        tile.Tile `json:"tile"`
	ClaimedFrom string   `json:"claimedFrom,omitempty"`
}

// GangScore 杠分明细：From 中每人向 UserID 支付 Points
type GangScore struct {
	UserID string    `json:"userId"`
	Kind   MeldKind  `json:"kind"`
	Tile   tile.Tile `json:"tile"`
	From   []string  `json:"from"`
	Points int       `json:"points"`
}

// PlayerResult 单人结算结果
type PlayerResult struct {
	UserID     string   `json:"userId"`
	Seat       int      `json:"seat"`
	IsWinner   bool     `json:"isWinner"`
	IsDealer   bool     `json:"isDealer"`
	Fan        int      `json:"fan"`
	HandTypes  []string `json:"handTypes,omitempty"`
	GangDelta  int      `json:"gangDelta"`
	WinDelta   int      `json:"winDelta"`
	FinalScore int      `json:"finalScore"`
}

// SettlementResult 结算总表，广播给房间并异步归档
type SettlementResult struct {
	GameEndReason   string         `json:"gameEndReason"`
	MultipleWinners bool           `json:"multipleWinners"`
	PlayerResults   []PlayerResult `json:"playerResults"`
	GangScores      []GangScore    `json:"gangScores"`
	FinalScores     map[string]int `json:"finalScores"`
}

// SettleInput 结算输入，由引擎在游戏结束时组装
type SettleInput struct {
	Reason  string
	Players []SettlePlayer
	Wins    []SettleWin
	Gangs   []GangEvent
}

// Settle 计算零和结算表
// 杠分先入账，再叠加和牌分，最后裁剪到 ±maxScore 并把余数归还赢家
func Settle(in SettleInput, cfg RoomConfig) SettlementResult {
	res := SettlementResult{
		GameEndReason:   in.Reason,
		MultipleWinners: cfg.Score.MultipleWinners && len(in.Wins) > 1,
		FinalScores:     make(map[string]int, len(in.Players)),
	}

	seatOf := make(map[string]int, len(in.Players))
	for i, p := range in.Players {
		seatOf[p.UserID] = i
	}
	gangDelta := make([]int, len(in.Players))
	winDelta := make([]int, len(in.Players))

	// 流局或解散：全零
	if in.Reason == EndReasonHu {
		res.GangScores = applyGangs(in, cfg, seatOf, gangDelta)
		applyWins(in, cfg, seatOf, winDelta)
	}

	total := make([]int, len(in.Players))
	for i := range total {
		total[i] = gangDelta[i] + winDelta[i]
	}
	clipZeroSum(total, cfg.Score.MaxScore)

	winners := make(map[string]SettleWin, len(in.Wins))
	for _, w := range in.Wins {
		winners[w.UserID] = w
	}
	for i, p := range in.Players {
		pr := PlayerResult{
			UserID:     p.UserID,
			Seat:       p.Seat,
			IsDealer:   p.Dealer,
			GangDelta:  gangDelta[i],
			WinDelta:   winDelta[i],
			FinalScore: total[i],
		}
		if w, ok := winners[p.UserID]; ok && in.Reason == EndReasonHu {
			pr.IsWinner = true
			pr.Fan = w.Result.BaseFan
			pr.HandTypes = w.Result.HandTypes
		}
		res.PlayerResults = append(res.PlayerResults, pr)
		res.FinalScores[p.UserID] = total[i]
	}
	return res
}

// applyGangs 杠分规则：
//   - 暗杠：其余每家付 gangBonus×4
//   - 明杠：放杠者付 gangBonus×2
//   - 加杠：原碰的放牌者付 gangBonus×2
func applyGangs(in SettleInput, cfg RoomConfig, seatOf map[string]int, delta []int) []GangScore {
	var out []GangScore
	for _, g := range in.Gangs {
		owner, ok := seatOf[g.UserID]
		if !ok {
			continue
		}
		gs := GangScore{UserID: g.UserID, Kind: g.Kind, Tile: g.Tile}
		switch g.Kind {
		case MeldConcealedKong:
			gs.Points = cfg.Score.GangBonus * 4
			for _, p := range in.Players {
				if p.UserID != g.UserID {
					gs.From = append(gs.From, p.UserID)
				}
			}
		case MeldOpenKong, MeldUpgradedKong:
			gs.Points = cfg.Score.GangBonus * 2
			if _, ok := seatOf[g.ClaimedFrom]; ok {
				gs.From = []string{g.ClaimedFrom}
			}
		default:
			continue
		}
		for _, from := range gs.From {
			delta[seatOf[from]] -= gs.Points
			delta[owner] += gs.Points
		}
		out = append(out, gs)
	}
	return out
}

// applyWins 和牌分：gross = baseScore×fan，赢家为庄乘 dealerMultiplier，自摸乘 selfDrawBonus
// 自摸时每家各付 gross，点炮时仅放炮者付 gross
func applyWins(in SettleInput, cfg RoomConfig, seatOf map[string]int, delta []int) {
	for _, w := range in.Wins {
		winner, ok := seatOf[w.UserID]
		if !ok {
			continue
		}
		gross := float64(cfg.Score.BaseScore * w.Result.BaseFan)
		if w.Result.Dealer {
			gross *= cfg.Score.DealerMultiplier
		}
		if w.Result.SelfDraw {
			gross *= cfg.Score.SelfDrawBonus
		}
		pay := int(math.Round(gross))

		if w.Result.SelfDraw {
			for i, p := range in.Players {
				if p.UserID == w.UserID {
					continue
				}
				delta[i] -= pay
				delta[winner] += pay
			}
		} else if from, ok := seatOf[w.Result.WinningFrom]; ok {
			delta[from] -= pay
			delta[winner] += pay
		}
	}
}

// clipZeroSum 把每人分值裁剪到 ±max 且保持总和为零
// 先抬高超限的输家并从最大赢家处扣回，再压低超限的赢家并返还给最大输家
func clipZeroSum(delta []int, max int) {
	for changed := true; changed; {
		changed = false
		for i := range delta {
			if delta[i] < -max {
				excess := -max - delta[i]
				delta[i] = -max
				takeFrom(delta, excess, true)
				changed = true
			}
		}
		for i := range delta {
			if delta[i] > max {
				excess := delta[i] - max
				delta[i] = max
				takeFrom(delta, excess, false)
				changed = true
			}
		}
	}
}

// takeFrom 逐分调整：fromWinners 时从当前最大者扣，否则补给当前最小者
// 逐分分摊保证多名赢家/输家之间均匀吸收余数
func takeFrom(delta []int, amount int, fromWinners bool) {
	for ; amount > 0; amount-- {
		idx := 0
		for i := range delta {
			if fromWinners && delta[i] > delta[idx] {
				idx = i
			}
			if !fromWinners && delta[i] < delta[idx] {
				idx = i
			}
		}
		if fromWinners {
			delta[idx]--
		} else {
			delta[idx]++
		}
	}
}
