package analyzer

import (
	"sync"

	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// KongKind 杠的三种形态
type KongKind string

const (
	KongOpen      KongKind = "OPEN"      // 明杠：手里 3 张 + 别人打出 1 张
	KongConcealed KongKind = "CONCEALED" // 暗杠：手里 4 张
	KongUpgraded  KongKind = "UPGRADED"  // 加杠：已碰 + 手里 1 张
)

// CanPong 手里是否有至少 2 张同牌
func CanPong(h tile.Hand27, t tile.Tile) bool {
	return h[t.Index()] >= 2
}

// CanOpenKong 手里是否有至少 3 张同牌（对别人打出的 t 开明杠）
func CanOpenKong(h tile.Hand27, t tile.Tile) bool {
	return h[t.Index()] >= 3
}

// ConcealedKongs 手里凑满 4 张的所有牌（可宣告暗杠）
func ConcealedKongs(h tile.Hand27) []tile.Tile {
	var out []tile.Tile
	for i := 0; i < 27; i++ {
		if h[i] >= 4 {
			out = append(out, tile.FromIndex(i))
		}
	}
	return out
}

// CanUpgradeKong 手里是否有 t（配合已有的碰升级为加杠）
func CanUpgradeKong(h tile.Hand27, t tile.Tile) bool {
	return h[t.Index()] >= 1
}

// ChowOptions 对上家打出的 t，返回所有可组成的顺子（升序三元组，含 t）
func ChowOptions(h tile.Hand27, t tile.Tile) [][3]tile.Tile {
	var out [][3]tile.Tile
	idx := t.Index()
	base := int(t.Suit) * 9

	// t 可以处在顺子的左、中、右三个位置
	for lo := idx - 2; lo <= idx; lo++ {
		if lo < base || lo+2 >= base+9 {
			continue
		}
		ok := true
		for k := lo; k <= lo+2; k++ {
			if k == idx {
				continue
			}
			if h[k] < 1 {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, [3]tile.Tile{tile.FromIndex(lo), tile.FromIndex(lo + 1), tile.FromIndex(lo + 2)})
		}
	}
	return out
}

// IsSevenPairs 七对：14 张、无副露、恰好 7 个对子
func IsSevenPairs(h tile.Hand27) bool {
	if h.Total() != 14 {
		return false
	}
	pairs := 0
	for i := 0; i < 27; i++ {
		if h[i]%2 != 0 {
			return false
		}
		pairs += int(h[i] / 2)
	}
	return pairs == 7
}

// Analyzer 带缓存的和牌检测器，多房间共享一个实例
type Analyzer struct {
	mu       sync.RWMutex
	winCache map[string]bool
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{
		winCache: make(map[string]bool, 4096),
	}
}

// IsWinning 普通牌型是否和牌：fixedMelds 为已副露的面子数
func (a *Analyzer) IsWinning(h tile.Hand27, fixedMelds int) bool {
	key := keyWithMelds(h, fixedMelds)
	a.mu.RLock()
	if v, ok := a.winCache[key]; ok {
		a.mu.RUnlock()
		return v
	}
	a.mu.RUnlock()

	ok := isWinningNormal(h, fixedMelds)

	a.mu.Lock()
	a.winCache[key] = ok
	a.mu.Unlock()
	return ok
}

// isWinningNormal 核心思想：固定雀头，剩余组面子
func isWinningNormal(h tile.Hand27, fixedMelds int) bool {
	need := 4 - fixedMelds
	if need < 0 {
		return false
	}
	if h.Total() != need*3+2 {
		return false
	}

	for j := 0; j < 27; j++ {
		if h[j] < 2 {
			continue
		}
		work := h
		work[j] -= 2
		if canFormSets(&work, need) {
			return true
		}
	}
	return false
}

func canFormSets(h *tile.Hand27, need int) bool {
	if need == 0 {
		for i := 0; i < 27; i++ {
			if (*h)[i] != 0 {
				return false
			}
		}
		return true
	}

	i := -1
	for k := 0; k < 27; k++ {
		if (*h)[k] > 0 {
			i = k
			break
		}
	}
	if i == -1 {
		return false
	}

	// 刻子
	if (*h)[i] >= 3 {
		(*h)[i] -= 3
		if canFormSets(h, need-1) {
			(*h)[i] += 3
			return true
		}
		(*h)[i] += 3
	}
	// 顺子（同花色内）
	if i%9 <= 6 {
		if (*h)[i] > 0 && (*h)[i+1] > 0 && (*h)[i+2] > 0 {
			(*h)[i]--
			(*h)[i+1]--
			(*h)[i+2]--
			if canFormSets(h, need-1) {
				(*h)[i]++
				(*h)[i+1]++
				(*h)[i+2]++
				return true
			}
			(*h)[i]++
			(*h)[i+1]++
			(*h)[i+2]++
		}
	}
	return false
}

func keyWithMelds(h tile.Hand27, fixedMelds int) string {
	var b [28]byte
	for i := 0; i < 27; i++ {
		b[i] = byte(h[i])
	}
	b[27] = byte(fixedMelds)
	return string(b[:])
}
