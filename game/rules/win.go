package rules

import (
	"errors"
	"fmt"

	"github.com/JackieWYB/majiang-sub001/game/analyzer"
	"github.com/JackieWYB/majiang-sub001/game/tile"
)

var ErrInvalidWin = errors.New("invalid win")

// WinResult 和牌评估结果
type WinResult struct {
	Valid       bool      `json:"valid"`
	BaseFan     int       `json:"baseFan"`
	HandTypes   []string  `json:"handTypes"`
	FanSources  []string  `json:"fanSources"`
	WinningTile tile.Tile `json:"winningTile"`
	SelfDraw    bool      `json:"selfDraw"`
	Dealer      bool      `json:"dealer"`
	WinningFrom string    `json:"winningFrom,omitempty"`
}

// 番值表，详见规则文档
const (
	fanBasic         = 1
	fanSelfDraw      = 1
	fanSevenPairs    = 4
	fanAllPungs      = 6
	fanAllTerminals  = 10
	fanPureSuit      = 8
	fanConcealedHand = 2
	fanEdgeOrPair    = 1
)

// EvaluateWin 判定 hand+winning 是否构成启用的和牌型并计番
// hand 为不含 winning 的暗手牌
func EvaluateWin(hand []tile.Tile, melds []Meld, winning tile.Tile, selfDraw, dealer bool, winningFrom string, cfg RoomConfig) (WinResult, error) {
	res := WinResult{
		WinningTile: winning,
		SelfDraw:    selfDraw,
		Dealer:      dealer,
		WinningFrom: winningFrom,
	}

	full := make([]tile.Tile, 0, len(hand)+1)
	full = append(full, hand...)
	full = append(full, winning)
	h := tile.Count(full)

	decomps := analyzer.Decompose(h, len(melds), cfg.HuEnabled(HuSevenPairs))
	if len(decomps) == 0 {
		return res, fmt.Errorf("%w: 牌型不成和", ErrInvalidWin)
	}

	best := WinResult{}
	for _, d := range decomps {
		cand, ok := scoreDecomposition(d, h, melds, winning, selfDraw, cfg)
		if !ok {
			continue
		}
		if !best.Valid || cand.BaseFan > best.BaseFan {
			best = cand
		}
	}
	if !best.Valid {
		return res, fmt.Errorf("%w: 所有牌型均被配置禁用", ErrInvalidWin)
	}

	best.WinningTile = winning
	best.SelfDraw = selfDraw
	best.Dealer = dealer
	best.WinningFrom = winningFrom
	return best, nil
}

func scoreDecomposition(d analyzer.Decomposition, h tile.Hand27, melds []Meld, winning tile.Tile, selfDraw bool, cfg RoomConfig) (WinResult, bool) {
	res := WinResult{}

	if d.SevenPairs {
		if !cfg.HuEnabled(HuSevenPairs) {
			return res, false
		}
	} else if !cfg.HuEnabled(HuBasicWin) {
		return res, false
	}
	res.Valid = true

	addFan := func(fan int, name, source string) {
		res.BaseFan += fan
		res.HandTypes = append(res.HandTypes, name)
		res.FanSources = append(res.FanSources, source)
	}

	if cfg.HuEnabled(HuBasicWin) {
		addFan(fanBasic, HuBasicWin, fmt.Sprintf("平胡 +%d", fanBasic))
	}
	if selfDraw && cfg.HuEnabled(HuSelfDraw) {
		addFan(fanSelfDraw, HuSelfDraw, fmt.Sprintf("自摸 +%d", fanSelfDraw))
	}
	if d.SevenPairs {
		addFan(fanSevenPairs, HuSevenPairs, fmt.Sprintf("七对 +%d", fanSevenPairs))
	}

	allPungs := !d.SevenPairs && d.PongCount() == len(d.Sets) && allMeldsPungLike(melds)
	if allPungs && cfg.HuEnabled(HuAllPungs) {
		addFan(fanAllPungs, HuAllPungs, fmt.Sprintf("对对胡 +%d", fanAllPungs))
	}

	if cfg.HuEnabled(HuAllTerminals) && allTerminals(h, melds) {
		addFan(fanAllTerminals, HuAllTerminals, fmt.Sprintf("全幺九 +%d", fanAllTerminals))
	}
	if cfg.HuEnabled(HuPureSuit) && pureSuit(h, melds) {
		addFan(fanPureSuit, HuPureSuit, fmt.Sprintf("清一色 +%d", fanPureSuit))
	}

	concealed := true
	for _, m := range melds {
		if !m.IsConcealed() {
			concealed = false
			break
		}
	}
	if concealed && cfg.HuEnabled(HuConcealedHand) {
		addFan(fanConcealedHand, HuConcealedHand, fmt.Sprintf("门清 +%d", fanConcealedHand))
	}

	if waitFan(d, winning, cfg) {
		addFan(fanEdgeOrPair, "edgeOrPairWait", fmt.Sprintf("边张/单钓 +%d", fanEdgeOrPair))
	}

	// 四暗刻：役满级，直接封顶
	if cfg.HuEnabled(HuFourConcealed) && concealed && allPungs && (selfDraw || d.Pair == winning) {
		res.BaseFan = MaxFan
		res.HandTypes = append(res.HandTypes, HuFourConcealed)
		res.FanSources = append(res.FanSources, "四暗刻 封顶")
	}

	if res.BaseFan > MaxFan {
		res.BaseFan = MaxFan
	}
	return res, true
}

func allMeldsPungLike(melds []Meld) bool {
	for _, m := range melds {
		if m.Kind == MeldChow {
			return false
		}
	}
	return true
}

func allTerminals(h tile.Hand27, melds []Meld) bool {
	for i := 0; i < 27; i++ {
		if h[i] > 0 && !tile.FromIndex(i).IsTerminal() {
			return false
		}
	}
	for _, m := range melds {
		for _, t := range m.Tiles {
			if !t.IsTerminal() {
				return false
			}
		}
	}
	return true
}

func pureSuit(h tile.Hand27, melds []Meld) bool {
	suit := tile.Suit(-1)
	check := func(t tile.Tile) bool {
		if suit == tile.Suit(-1) {
			suit = t.Suit
		}
		return t.Suit == suit
	}
	for i := 0; i < 27; i++ {
		if h[i] > 0 && !check(tile.FromIndex(i)) {
			return false
		}
	}
	for _, m := range melds {
		for _, t := range m.Tiles {
			if !check(t) {
				return false
			}
		}
	}
	return true
}

// waitFan 边张（123 的 3、789 的 7）或单钓雀头
func waitFan(d analyzer.Decomposition, winning tile.Tile, cfg RoomConfig) bool {
	if cfg.HuEnabled(HuPairWait) && !d.SevenPairs && d.Pair == winning {
		return true
	}
	if !cfg.HuEnabled(HuEdgeWait) {
		return false
	}
	for _, s := range d.Sets {
		if s.Kind != analyzer.SetChow {
			continue
		}
		lo := s.Tiles[0]
		if lo.Suit != winning.Suit {
			continue
		}
		if lo.Rank == 1 && winning.Rank == 3 {
			return true
		}
		if lo.Rank == 7 && winning.Rank == 7 {
			return true
		}
	}
	return false
}
