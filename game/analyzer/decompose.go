package analyzer

import (
	"sort"

	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// SetKind 手内面子类型（副露的面子不参与拆解）
type SetKind string

const (
	SetPong SetKind = "PONG"
	SetChow SetKind = "CHOW"
)

type Set struct {
	Kind  SetKind      `json:"kind"`
	Tiles [3]tile.Tile `json:"tiles"`
}

// Decomposition 一种合法拆解：雀头 + 手内面子；SevenPairs 为七对特殊型
type Decomposition struct {
	Pair       tile.Tile `json:"pair"`
	Sets       []Set     `json:"sets"`
	SevenPairs bool      `json:"sevenPairs"`
}

// PongCount 拆解里的刻子数
func (d Decomposition) PongCount() int {
	n := 0
	for _, s := range d.Sets {
		if s.Kind == SetPong {
			n++
		}
	}
	return n
}

// Decompose 枚举 14 张型的全部合法拆解
// 顺序确定：刻子多者优先，其次雀头小者优先，便于计分稳定
func Decompose(h tile.Hand27, fixedMelds int, sevenPairs bool) []Decomposition {
	var out []Decomposition

	need := 4 - fixedMelds
	if need >= 0 && h.Total() == need*3+2 {
		for j := 0; j < 27; j++ {
			if h[j] < 2 {
				continue
			}
			work := h
			work[j] -= 2
			var sets []Set
			collectSets(&work, need, &sets, func(found []Set) {
				cp := make([]Set, len(found))
				copy(cp, found)
				out = append(out, Decomposition{Pair: tile.FromIndex(j), Sets: cp})
			})
		}
	}

	if sevenPairs && fixedMelds == 0 && IsSevenPairs(h) {
		out = append(out, Decomposition{SevenPairs: true})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PongCount() != out[j].PongCount() {
			return out[i].PongCount() > out[j].PongCount()
		}
		return out[i].Pair.Index() < out[j].Pair.Index()
	})
	return out
}

func collectSets(h *tile.Hand27, need int, acc *[]Set, yield func([]Set)) {
	if need == 0 {
		for i := 0; i < 27; i++ {
			if (*h)[i] != 0 {
				return
			}
		}
		yield(*acc)
		return
	}

	i := -1
	for k := 0; k < 27; k++ {
		if (*h)[k] > 0 {
			i = k
			break
		}
	}
	if i == -1 {
		return
	}

	if (*h)[i] >= 3 {
		(*h)[i] -= 3
		t := tile.FromIndex(i)
		*acc = append(*acc, Set{Kind: SetPong, Tiles: [3]tile.Tile{t, t, t}})
		collectSets(h, need-1, acc, yield)
		*acc = (*acc)[:len(*acc)-1]
		(*h)[i] += 3
	}
	if i%9 <= 6 && (*h)[i] > 0 && (*h)[i+1] > 0 && (*h)[i+2] > 0 {
		(*h)[i]--
		(*h)[i+1]--
		(*h)[i+2]--
		*acc = append(*acc, Set{Kind: SetChow, Tiles: [3]tile.Tile{tile.FromIndex(i), tile.FromIndex(i + 1), tile.FromIndex(i + 2)}})
		collectSets(h, need-1, acc, yield)
		*acc = (*acc)[:len(*acc)-1]
		(*h)[i]++
		(*h)[i+1]++
		(*h)[i+2]++
	}
}
