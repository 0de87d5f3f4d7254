package tile

import (
	"errors"
	"fmt"
	"sort"
)

// Suit 花色
type Suit int

const (
	SuitWan  Suit = iota // 万
	SuitTiao             // 条
	SuitTong             // 筒
)

const (
	MinRank   = 1
	MaxRank   = 9
	NumCopies = 4 // 每种牌 4 张
)

var suitLetters = [...]string{"W", "T", "D"}

func (s Suit) Letter() string {
	if s < SuitWan || s > SuitTong {
		return "?"
	}
	return suitLetters[s]
}

// Tile 一张牌，按 (花色, 点数) 结构相等
type Tile struct {
	Suit Suit `json:"suit"`
	Rank int  `json:"rank"`
}

// String 编码为 "<点数><花色字母>"，如 "5W"
func (t Tile) String() string {
	return fmt.Sprintf("%d%s", t.Rank, t.Suit.Letter())
}

// Index 计数数组下标：花色*9 + 点数-1
func (t Tile) Index() int {
	return int(t.Suit)*9 + t.Rank - 1
}

// IsTerminal 是否幺九牌（1、9）
func (t Tile) IsTerminal() bool {
	return t.Rank == MinRank || t.Rank == MaxRank
}

var ErrInvalidTile = errors.New("invalid tile encoding")

// Parse 解析 "5W" 形式的编码
func Parse(s string) (Tile, error) {
	if len(s) != 2 {
		return Tile{}, ErrInvalidTile
	}
	rank := int(s[0] - '0')
	if rank < MinRank || rank > MaxRank {
		return Tile{}, ErrInvalidTile
	}
	var suit Suit
	switch s[1] {
	case 'W', 'w':
		suit = SuitWan
	case 'T', 't':
		suit = SuitTiao
	case 'D', 'd':
		suit = SuitTong
	default:
		return Tile{}, ErrInvalidTile
	}
	return Tile{Suit: suit, Rank: rank}, nil
}

// FromIndex 计数数组下标还原牌
func FromIndex(i int) Tile {
	return Tile{Suit: Suit(i / 9), Rank: i%9 + 1}
}

// Sort 按花色再点数排序，仅用于展示和确定性输出
func Sort(tiles []Tile) {
	sort.Slice(tiles, func(i, j int) bool {
		if tiles[i].Suit != tiles[j].Suit {
			return tiles[i].Suit < tiles[j].Suit
		}
		return tiles[i].Rank < tiles[j].Rank
	})
}

// Count 把牌列表折叠成 27 位计数数组
func Count(tiles []Tile) Hand27 {
	var h Hand27
	for _, t := range tiles {
		h[t.Index()]++
	}
	return h
}

// Hand27 三花色计数数组（3*9），与牌的多重集合一一对应
type Hand27 [27]uint8

// Total 总张数
func (h Hand27) Total() int {
	n := 0
	for i := 0; i < 27; i++ {
		n += int(h[i])
	}
	return n
}

// Tiles 还原为有序牌列表
func (h Hand27) Tiles() []Tile {
	out := make([]Tile, 0, h.Total())
	for i := 0; i < 27; i++ {
		for k := uint8(0); k < h[i]; k++ {
			out = append(out, FromIndex(i))
		}
	}
	return out
}

// Key 缓存 key
func (h Hand27) Key() string {
	var b [27]byte
	for i := 0; i < 27; i++ {
		b[i] = byte(h[i])
	}
	return string(b[:])
}
