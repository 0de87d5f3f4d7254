package analyzer

import (
	"testing"

	"github.com/JackieWYB/majiang-sub001/game/tile"
)

func hand(t *testing.T, codes ...string) tile.Hand27 {
	t.Helper()
	var h tile.Hand27
	for _, c := range codes {
		tl, err := tile.Parse(c)
		if err != nil {
			t.Fatalf("parse %q: %v", c, err)
		}
		h[tl.Index()]++
	}
	return h
}

func tl(t *testing.T, code string) tile.Tile {
	t.Helper()
	out, err := tile.Parse(code)
	if err != nil {
		t.Fatalf("parse %q: %v", code, err)
	}
	return out
}

func TestClaimPredicates(t *testing.T) {
	h := hand(t, "5W", "5W", "7T", "7T", "7T", "9D", "9D", "9D", "9D")

	if !CanPong(h, tl(t, "5W")) {
		t.Fatalf("two 5W should allow pong")
	}
	if CanPong(h, tl(t, "6W")) {
		t.Fatalf("no 6W, pong must be illegal")
	}
	if !CanOpenKong(h, tl(t, "7T")) {
		t.Fatalf("three 7T should allow open kong")
	}
	if CanOpenKong(h, tl(t, "5W")) {
		t.Fatalf("two 5W cannot open kong")
	}
	ks := ConcealedKongs(h)
	if len(ks) != 1 || ks[0] != tl(t, "9D") {
		t.Fatalf("concealed kongs expected [9D], got %v", ks)
	}
	if !CanUpgradeKong(h, tl(t, "5W")) || CanUpgradeKong(h, tl(t, "1W")) {
		t.Fatalf("upgrade kong predicate wrong")
	}
}

func TestChowOptions(t *testing.T) {
	h := hand(t, "4W", "6W", "7W")

	opts := ChowOptions(h, tl(t, "5W"))
	if len(opts) != 2 {
		t.Fatalf("expected 2 chow options, got %d: %v", len(opts), opts)
	}
	if opts[0][0] != tl(t, "4W") || opts[1][0] != tl(t, "5W") {
		t.Fatalf("unexpected chow options %v", opts)
	}

	// 1W can only be the left end.
	h2 := hand(t, "2W", "3W")
	opts2 := ChowOptions(h2, tl(t, "1W"))
	if len(opts2) != 1 || opts2[0][0] != tl(t, "1W") {
		t.Fatalf("edge chow options wrong: %v", opts2)
	}

	// No cross-suit sequences.
	h3 := hand(t, "8W", "9W")
	if got := ChowOptions(h3, tl(t, "1T")); len(got) != 0 {
		t.Fatalf("cross-suit chow must be empty, got %v", got)
	}
}

func TestIsWinningNormal(t *testing.T) {
	a := NewAnalyzer()

	// 111W 234W 555T 789D + 99D
	win := hand(t, "1W", "1W", "1W", "2W", "3W", "4W",
		"5T", "5T", "5T", "7D", "8D", "9D", "9D", "9D")
	if !a.IsWinning(win, 0) {
		t.Fatalf("expected winning hand")
	}
	// Run twice for the cache path.
	if !a.IsWinning(win, 0) {
		t.Fatalf("cached result diverged")
	}

	lose := hand(t, "1W", "1W", "1W", "2W", "3W", "4W",
		"5T", "5T", "6T", "7D", "8D", "9D", "9D", "9D")
	if a.IsWinning(lose, 0) {
		t.Fatalf("expected non-winning hand")
	}
}

func TestIsWinningWithFixedMelds(t *testing.T) {
	a := NewAnalyzer()

	// one meld fixed, concealed: 234W 555T 99D + pair complement = 11 tiles
	h := hand(t, "2W", "3W", "4W", "5T", "5T", "5T", "7D", "8D", "9D", "9D", "9D")
	if !a.IsWinning(h, 1) {
		t.Fatalf("expected winning with one fixed meld")
	}
	if a.IsWinning(h, 0) {
		t.Fatalf("11 tiles with no fixed melds cannot win")
	}
}

func TestIsSevenPairs(t *testing.T) {
	h := hand(t, "1W", "1W", "3W", "3W", "5W", "5W",
		"7T", "7T", "9T", "9T", "2D", "2D", "4D", "4D")
	if !IsSevenPairs(h) {
		t.Fatalf("expected seven pairs")
	}

	// Four of a kind counts as two pairs.
	h4 := hand(t, "1W", "1W", "1W", "1W", "5W", "5W",
		"7T", "7T", "9T", "9T", "2D", "2D", "4D", "4D")
	if !IsSevenPairs(h4) {
		t.Fatalf("four of a kind should count as two pairs")
	}

	bad := hand(t, "1W", "1W", "3W", "4W", "5W", "5W",
		"7T", "7T", "9T", "9T", "2D", "2D", "4D", "4D")
	if IsSevenPairs(bad) {
		t.Fatalf("expected not seven pairs")
	}
}

func TestDecomposeOrdering(t *testing.T) {
	// 111W 222W 333W 555T 99D: pure pong decomposition must sort first,
	// even though 123W×3 sequences also decompose the same tiles.
	h := hand(t, "1W", "1W", "1W", "2W", "2W", "2W", "3W", "3W", "3W",
		"5T", "5T", "5T", "9D", "9D")
	ds := Decompose(h, 0, true)
	if len(ds) < 2 {
		t.Fatalf("expected multiple decompositions, got %d", len(ds))
	}
	if ds[0].PongCount() != 4 {
		t.Fatalf("first decomposition should be all pongs, got %d", ds[0].PongCount())
	}
	for _, d := range ds {
		if d.SevenPairs {
			t.Fatalf("no seven pairs in this shape")
		}
		if d.Pair != tl(t, "9D") {
			t.Fatalf("pair must be 9D, got %s", d.Pair)
		}
	}
}

func TestDecomposeSevenPairsOnlyWithoutMelds(t *testing.T) {
	h := hand(t, "1W", "1W", "3W", "3W", "5W", "5W",
		"7T", "7T", "9T", "9T", "2D", "2D", "4D", "4D")
	ds := Decompose(h, 0, true)
	if len(ds) != 1 || !ds[0].SevenPairs {
		t.Fatalf("expected single seven-pairs decomposition, got %v", ds)
	}
	if got := Decompose(h, 0, false); len(got) != 0 {
		t.Fatalf("seven pairs disabled should decompose to nothing, got %v", got)
	}
	if got := Decompose(h, 1, true); len(got) != 0 {
		t.Fatalf("seven pairs with fixed melds must be empty, got %v", got)
	}
}
