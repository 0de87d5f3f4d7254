package tile

import "testing"

func mustParse(t *testing.T, s string) Tile {
	t.Helper()
	tl, err := Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tl
}

func TestParseAndString(t *testing.T) {
	for _, s := range []string{"1W", "5W", "9W", "1T", "9T", "1D", "9D"} {
		tl := mustParse(t, s)
		if tl.String() != s {
			t.Fatalf("roundtrip %q got %q", s, tl.String())
		}
	}
	for _, s := range []string{"", "5", "0W", "W5", "5X", "10W"} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("expected parse error for %q", s)
		}
	}
}

func TestIndexRoundtrip(t *testing.T) {
	for i := 0; i < 27; i++ {
		if got := FromIndex(i).Index(); got != i {
			t.Fatalf("index roundtrip %d got %d", i, got)
		}
	}
	if idx := mustParse(t, "5W").Index(); idx != 4 {
		t.Fatalf("5W index expected 4, got %d", idx)
	}
	if idx := mustParse(t, "1T").Index(); idx != 9 {
		t.Fatalf("1T index expected 9, got %d", idx)
	}
}

func TestIsTerminal(t *testing.T) {
	if !mustParse(t, "1D").IsTerminal() || !mustParse(t, "9W").IsTerminal() {
		t.Fatalf("1D and 9W should be terminals")
	}
	if mustParse(t, "5T").IsTerminal() {
		t.Fatalf("5T should not be a terminal")
	}
}

func TestCountAndTiles(t *testing.T) {
	in := []Tile{mustParse(t, "5W"), mustParse(t, "5W"), mustParse(t, "1T")}
	h := Count(in)
	if h.Total() != 3 {
		t.Fatalf("total expected 3, got %d", h.Total())
	}
	if h[4] != 2 || h[9] != 1 {
		t.Fatalf("unexpected counts: %v", h)
	}
	back := h.Tiles()
	if len(back) != 3 || back[0].String() != "5W" || back[2].String() != "1T" {
		t.Fatalf("tiles roundtrip got %v", back)
	}
}

func TestSortStable(t *testing.T) {
	ts := []Tile{mustParse(t, "9D"), mustParse(t, "1W"), mustParse(t, "5T")}
	Sort(ts)
	if ts[0].String() != "1W" || ts[1].String() != "5T" || ts[2].String() != "9D" {
		t.Fatalf("sort order wrong: %v", ts)
	}
}
