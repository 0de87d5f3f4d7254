package rules

import (
	"errors"
	"testing"

	"github.com/JackieWYB/majiang-sub001/game/tile"
)

func tiles(t *testing.T, codes ...string) []tile.Tile {
	t.Helper()
	out := make([]tile.Tile, 0, len(codes))
	for _, c := range codes {
		tl, err := tile.Parse(c)
		if err != nil {
			t.Fatalf("parse %q: %v", c, err)
		}
		out = append(out, tl)
	}
	return out
}

func tl(t *testing.T, code string) tile.Tile {
	t.Helper()
	out, err := tile.Parse(code)
	if err != nil {
		t.Fatalf("parse %q: %v", code, err)
	}
	return out
}

// baseConfig 仅开启基础九种牌型，不含门清加番
func baseConfig() RoomConfig {
	cfg := DefaultConfig()
	cfg.HuTypes = []string{
		HuBasicWin, HuSevenPairs, HuAllPungs, HuEdgeWait, HuPairWait,
		HuAllTerminals, HuPureSuit, HuFourConcealed, HuSelfDraw,
	}
	return cfg
}

func TestEvaluateWinBasicSelfDraw(t *testing.T) {
	// 111W 2W4W 555T 789D 99D，自摸 3W 成 234W（非边张、非单钓）
	hand := tiles(t, "1W", "1W", "1W", "2W", "4W",
		"5T", "5T", "5T", "7D", "8D", "9D", "9D", "9D")
	res, err := EvaluateWin(hand, nil, tl(t, "3W"), true, true, "", baseConfig())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// 平胡 1 + 自摸 1
	if res.BaseFan != 2 {
		t.Fatalf("fan expected 2, got %d (%v)", res.BaseFan, res.FanSources)
	}
	if !res.SelfDraw || !res.Dealer {
		t.Fatalf("context flags lost: %+v", res)
	}
}

func TestEvaluateWinSevenPairs(t *testing.T) {
	hand := tiles(t, "1W", "1W", "3W", "3W", "5W", "5W",
		"7T", "7T", "9T", "9T", "2D", "2D", "4D")
	res, err := EvaluateWin(hand, nil, tl(t, "4D"), false, false, "u1", baseConfig())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// 平胡 1 + 七对 4
	if res.BaseFan != 5 {
		t.Fatalf("seven pairs fan expected 5, got %d (%v)", res.BaseFan, res.FanSources)
	}
	if res.WinningFrom != "u1" {
		t.Fatalf("winningFrom lost: %+v", res)
	}
}

func TestEvaluateWinConcealedHandBonus(t *testing.T) {
	hand := tiles(t, "1W", "1W", "3W", "3W", "5W", "5W",
		"7T", "7T", "9T", "9T", "2D", "2D", "4D")
	res, err := EvaluateWin(hand, nil, tl(t, "4D"), false, false, "u1", DefaultConfig())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// 默认配置额外开启门清：1 + 4 + 2
	if res.BaseFan != 7 {
		t.Fatalf("fan expected 7, got %d (%v)", res.BaseFan, res.FanSources)
	}
}

func TestEvaluateWinAllPungsPureSuit(t *testing.T) {
	// 副露碰 111W，手牌 333W 555W 777W + 9W，摸 9W
	melds := []Meld{NewPong(tl(t, "1W"), "u2")}
	hand := tiles(t, "3W", "3W", "3W", "5W", "5W", "5W", "7W", "7W", "7W", "9W")
	res, err := EvaluateWin(hand, melds, tl(t, "9W"), true, false, "", baseConfig())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// 平胡 1 + 自摸 1 + 对对胡 6 + 清一色 8 + 单钓 1 = 17，封顶 13
	if res.BaseFan != MaxFan {
		t.Fatalf("fan expected cap %d, got %d (%v)", MaxFan, res.BaseFan, res.FanSources)
	}
	// 副露破门清，不是四暗刻
	for _, ht := range res.HandTypes {
		if ht == HuFourConcealed {
			t.Fatalf("open pong must not count as four concealed")
		}
	}
}

func TestEvaluateWinFourConcealed(t *testing.T) {
	// 全暗：111W 333W 555T 777T + 9D，自摸 9D
	hand := tiles(t, "1W", "1W", "1W", "3W", "3W", "3W",
		"5T", "5T", "5T", "7T", "7T", "7T", "9D")
	res, err := EvaluateWin(hand, nil, tl(t, "9D"), true, false, "", baseConfig())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.BaseFan != MaxFan {
		t.Fatalf("four concealed must cap at %d, got %d", MaxFan, res.BaseFan)
	}
	found := false
	for _, ht := range res.HandTypes {
		if ht == HuFourConcealed {
			found = true
		}
	}
	if !found {
		t.Fatalf("four concealed missing from hand types: %v", res.HandTypes)
	}
}

func TestEvaluateWinEdgeWait(t *testing.T) {
	// 12W 等 3W 边张：12W 456T 789T 99D 55D... 用 12W + 3W 成顺
	hand := tiles(t, "1W", "2W", "4T", "5T", "6T", "7T", "8T", "9T",
		"5D", "5D", "9D", "9D", "9D")
	res, err := EvaluateWin(hand, nil, tl(t, "3W"), false, false, "u3", baseConfig())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// 平胡 1 + 边张 1
	if res.BaseFan != 2 {
		t.Fatalf("edge wait fan expected 2, got %d (%v)", res.BaseFan, res.FanSources)
	}
}

func TestEvaluateWinInvalid(t *testing.T) {
	hand := tiles(t, "1W", "2W", "4T", "5T", "6T", "7T", "8T", "9T",
		"5D", "6D", "9D", "9D", "9D")
	if _, err := EvaluateWin(hand, nil, tl(t, "3W"), false, false, "", baseConfig()); !errors.Is(err, ErrInvalidWin) {
		t.Fatalf("expected ErrInvalidWin, got %v", err)
	}

	// 七对被禁用后同样的牌不成和
	cfg := baseConfig()
	cfg.HuTypes = []string{HuBasicWin}
	sp := tiles(t, "1W", "1W", "3W", "3W", "5W", "5W",
		"7T", "7T", "9T", "9T", "2D", "2D", "4D")
	if _, err := EvaluateWin(sp, nil, tl(t, "4D"), false, false, "", cfg); !errors.Is(err, ErrInvalidWin) {
		t.Fatalf("disabled seven pairs should fail, got %v", err)
	}
}
