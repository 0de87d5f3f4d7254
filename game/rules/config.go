package rules

import (
	"errors"
	"fmt"

	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// 牌型开关，对应 huTypes 配置项
const (
	HuBasicWin      = "basicWin"
	HuSevenPairs    = "sevenPairs"
	HuAllPungs      = "allPungs"
	HuEdgeWait      = "edgeWait"
	HuPairWait      = "pairWait"
	HuAllTerminals  = "allTerminals"
	HuPureSuit      = "pureSuit"
	HuFourConcealed = "fourConcealed"
	HuSelfDraw      = "selfDraw"
	HuConcealedHand = "concealedHand"
)

var knownHuTypes = map[string]bool{
	HuBasicWin: true, HuSevenPairs: true, HuAllPungs: true,
	HuEdgeWait: true, HuPairWait: true, HuAllTerminals: true,
	HuPureSuit: true, HuFourConcealed: true, HuSelfDraw: true,
	HuConcealedHand: true,
}

// MaxFan 番数封顶
const MaxFan = 13

const RoomPlayers = 3

var ErrConfigInvalid = errors.New("room config invalid")

type ScoreConfig struct {
	BaseScore        int     `json:"baseScore"`
	MaxScore         int     `json:"maxScore"`
	DealerMultiplier float64 `json:"dealerMultiplier"`
	SelfDrawBonus    float64 `json:"selfDrawBonus"`
	GangBonus        int     `json:"gangBonus"`
	MultipleWinners  bool    `json:"multipleWinners"`
}

type TurnConfig struct {
	TurnTimeLimitSeconds   int  `json:"turnTimeLimitSeconds"`
	ActionTimeLimitSeconds int  `json:"actionTimeLimitSeconds"`
	AutoTrustee            bool `json:"autoTrustee"`
}

// RoomConfig 一张桌子的规则配置，创建房间时校验一次
type RoomConfig struct {
	Players   int          `json:"players"`
	Tiles     tile.TileSet `json:"tiles"`
	AllowPong bool         `json:"allowPong"`
	AllowKong bool         `json:"allowKong"`
	AllowChow bool         `json:"allowChow"`
	HuTypes   []string     `json:"huTypes"`
	Score     ScoreConfig  `json:"score"`
	Turn      TurnConfig   `json:"turn"`
	MaxRounds int          `json:"maxRounds"`
}

// DefaultConfig 血战到底常规配置
func DefaultConfig() RoomConfig {
	return RoomConfig{
		Players:   RoomPlayers,
		Tiles:     tile.SetAllSuits,
		AllowPong: true,
		AllowKong: true,
		AllowChow: false,
		HuTypes: []string{
			HuBasicWin, HuSevenPairs, HuAllPungs, HuEdgeWait, HuPairWait,
			HuAllTerminals, HuPureSuit, HuFourConcealed, HuSelfDraw,
			HuConcealedHand,
		},
		Score: ScoreConfig{
			BaseScore:        2,
			MaxScore:         200,
			DealerMultiplier: 1,
			SelfDrawBonus:    1,
			GangBonus:        1,
			MultipleWinners:  false,
		},
		Turn: TurnConfig{
			TurnTimeLimitSeconds:   15,
			ActionTimeLimitSeconds: 2,
			AutoTrustee:            true,
		},
		MaxRounds: 1,
	}
}

// HuEnabled 牌型是否启用
func (c RoomConfig) HuEnabled(name string) bool {
	for _, t := range c.HuTypes {
		if t == name {
			return true
		}
	}
	return false
}

// Validate 校验配置合法性
func (c RoomConfig) Validate() error {
	if c.Players != RoomPlayers {
		return fmt.Errorf("%w: players 只支持 %d", ErrConfigInvalid, RoomPlayers)
	}
	if _, err := c.Tiles.Suits(); err != nil {
		return fmt.Errorf("%w: 未知牌组 %q", ErrConfigInvalid, c.Tiles)
	}
	for _, t := range c.HuTypes {
		if !knownHuTypes[t] {
			return fmt.Errorf("%w: 未知牌型 %q", ErrConfigInvalid, t)
		}
	}
	if c.Score.BaseScore <= 0 || c.Score.MaxScore <= 0 {
		return fmt.Errorf("%w: 分数配置必须为正", ErrConfigInvalid)
	}
	if c.Score.DealerMultiplier <= 0 || c.Score.SelfDrawBonus <= 0 {
		return fmt.Errorf("%w: 倍率配置必须为正", ErrConfigInvalid)
	}
	if c.Score.GangBonus < 0 {
		return fmt.Errorf("%w: gangBonus 不能为负", ErrConfigInvalid)
	}
	if c.Turn.TurnTimeLimitSeconds <= 0 || c.Turn.ActionTimeLimitSeconds <= 0 {
		return fmt.Errorf("%w: 回合时限必须为正", ErrConfigInvalid)
	}
	if c.MaxRounds <= 0 {
		return fmt.Errorf("%w: maxRounds 必须为正", ErrConfigInvalid)
	}
	return nil
}
