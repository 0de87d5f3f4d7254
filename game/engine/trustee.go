package engine

import (
	"github.com/JackieWYB/majiang-sub001/game/rules"
	"github.com/JackieWYB/majiang-sub001/game/tile"
)

// 托管策略是纯确定性的：可胡则胡，否则打最近摸入的牌，
// 没有摸牌记录时打序号最大的手牌

// trusteePlay 代打当前回合
func (e *Engine) trusteePlay(p *PlayerState) {
	st := e.st
	if st == nil || st.Phase != PhasePlaying || st.CurrentPlayer() != p || st.Window != nil {
		return
	}

	if p.CanAct(ActHu) && p.LastDrawn != nil {
		res := e.doSubmit(p.UserID, Action{Kind: ActHu, Tile: *p.LastDrawn, SelfDraw: true}, true)
		if res.Success {
			return
		}
	}

	var out tile.Tile
	if p.LastDrawn != nil {
		out = *p.LastDrawn
	} else {
		out = rightmostTile(p.Hand)
	}
	e.doSubmit(p.UserID, Action{Kind: ActDiscard, Tile: out}, true)
}

// trusteeWindowAction 窗口内代答：可胡则胡，其余一律过
func (e *Engine) trusteeWindowAction(p *PlayerState) Action {
	st := e.st
	w := st.Window
	if p.Status == StatusTrustee && w.eligibleFor(p.UserID, ActHu) {
		if _, err := rules.EvaluateWin(p.Hand, p.Melds, w.Tile, false, p.Dealer, w.Discarder, st.Config); err == nil {
			return Action{Kind: ActHu, Tile: w.Tile}
		}
	}
	return Action{Kind: ActPass}
}

func rightmostTile(hand []tile.Tile) tile.Tile {
	out := hand[0]
	for _, t := range hand[1:] {
		if t.Index() > out.Index() {
			out = t
		}
	}
	return out
}
