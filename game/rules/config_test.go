package rules

import (
	"errors"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RoomConfig)
	}{
		{"players", func(c *RoomConfig) { c.Players = 4 }},
		{"tiles", func(c *RoomConfig) { c.Tiles = "HONORS" }},
		{"huTypes", func(c *RoomConfig) { c.HuTypes = []string{"thirteenOrphans"} }},
		{"baseScore", func(c *RoomConfig) { c.Score.BaseScore = 0 }},
		{"maxScore", func(c *RoomConfig) { c.Score.MaxScore = -1 }},
		{"dealerMultiplier", func(c *RoomConfig) { c.Score.DealerMultiplier = 0 }},
		{"gangBonus", func(c *RoomConfig) { c.Score.GangBonus = -1 }},
		{"turnLimit", func(c *RoomConfig) { c.Turn.TurnTimeLimitSeconds = 0 }},
		{"maxRounds", func(c *RoomConfig) { c.MaxRounds = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestHuEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HuTypes = []string{HuBasicWin, HuSelfDraw}
	if !cfg.HuEnabled(HuBasicWin) || cfg.HuEnabled(HuSevenPairs) {
		t.Fatalf("hu type gating wrong")
	}
}
