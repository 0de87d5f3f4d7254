package tile

import (
	"errors"
	"math/rand"
)

// TileSet 房间配置允许的牌组
type TileSet string

const (
	SetWanOnly  TileSet = "WAN_ONLY"  // 万子 36 张
	SetAllSuits TileSet = "ALL_SUITS" // 万条筒 108 张
)

var (
	ErrConfigInvalid = errors.New("tile set invalid or empty")
	ErrWallEmpty     = errors.New("wall empty")
)

// Suits 牌组对应的花色
func (s TileSet) Suits() ([]Suit, error) {
	switch s {
	case SetWanOnly:
		return []Suit{SuitWan}, nil
	case SetAllSuits:
		return []Suit{SuitWan, SuitTiao, SuitTong}, nil
	default:
		return nil, ErrConfigInvalid
	}
}

// Size 牌组总张数
func (s TileSet) Size() int {
	suits, err := s.Suits()
	if err != nil {
		return 0
	}
	return len(suits) * 9 * NumCopies
}

// Wall 牌墙，tiles[next] 是下一张摸牌
type Wall struct {
	tiles []Tile
	next  int
}

// NewWall 生成 seed 决定的确定性牌墙（Fisher–Yates）
func NewWall(set TileSet, seed int64) (*Wall, error) {
	suits, err := set.Suits()
	if err != nil {
		return nil, err
	}

	tiles := make([]Tile, 0, len(suits)*9*NumCopies)
	for _, suit := range suits {
		for rank := MinRank; rank <= MaxRank; rank++ {
			for c := 0; c < NumCopies; c++ {
				tiles = append(tiles, Tile{Suit: suit, Rank: rank})
			}
		}
	}
	if len(tiles) == 0 {
		return nil, ErrConfigInvalid
	}

	rng := rand.New(rand.NewSource(seed))
	for i := len(tiles) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		tiles[i], tiles[j] = tiles[j], tiles[i]
	}

	return &Wall{tiles: tiles}, nil
}

// Restore 从持久化的剩余牌恢复牌墙
func Restore(remaining []Tile) *Wall {
	tiles := make([]Tile, len(remaining))
	copy(tiles, remaining)
	return &Wall{tiles: tiles}
}

// Draw 摸走顶牌
func (w *Wall) Draw() (Tile, error) {
	if w.next >= len(w.tiles) {
		return Tile{}, ErrWallEmpty
	}
	t := w.tiles[w.next]
	w.next++
	return t, nil
}

// Remaining 剩余张数
func (w *Wall) Remaining() int {
	return len(w.tiles) - w.next
}

// RemainingTiles 剩余牌的有序副本，用于持久化
func (w *Wall) RemainingTiles() []Tile {
	out := make([]Tile, w.Remaining())
	copy(out, w.tiles[w.next:])
	return out
}
