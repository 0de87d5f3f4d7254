package engine

import (
	"sort"
	"time"

	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/game/analyzer"
	"github.com/JackieWYB/majiang-sub001/game/rules"
	"github.com/JackieWYB/majiang-sub001/game/tile"
)

const handSize = 13

// doStart 开局，仅在 lane 内调用
func (e *Engine) doStart(players []StartPlayer, cfg rules.RoomConfig, seed int64) error {
	if e.st != nil && e.st.Phase == PhasePlaying {
		return NewError(CodeRoomNotReady, "房间 %s 对局进行中", e.roomID)
	}
	if err := cfg.Validate(); err != nil {
		return NewError(CodeConfigInvalid, "规则配置非法: %v", err)
	}
	if len(players) != rules.RoomPlayers {
		return NewError(CodePlayerCountInvalid, "需要 %d 名玩家, 实际 %d", rules.RoomPlayers, len(players))
	}

	wall, err := tile.NewWall(cfg.Tiles, seed)
	if err != nil {
		return NewError(CodeConfigInvalid, "牌墙构建失败: %v", err)
	}
	// 三人各 13 张加庄家 1 张
	if wall.Remaining() < rules.RoomPlayers*handSize+1 {
		return NewError(CodeConfigInvalid, "牌组 %s 共 %d 张, 不足以发牌", cfg.Tiles, wall.Remaining())
	}

	st := &GameState{
		RoomID: e.roomID,
		GameID: newGameID(),
		Phase:  PhasePlaying,
		Round:  1,
		Seed:   seed,
		Config: cfg,
	}
	for i, sp := range players {
		st.Players = append(st.Players, &PlayerState{
			UserID: sp.UserID,
			Seat:   i,
			Status: StatusWaitingTurn,
		})
	}
	st.DealerUserID = st.Players[0].UserID
	st.Players[0].Dealer = true
	st.CurrentPlayerIndex = 0

	// 从庄家起轮流摸牌，保证同一 seed 下发牌完全可复现
	for k := 0; k < handSize; k++ {
		for _, p := range st.Players {
			t, _ := wall.Draw()
			p.Hand = append(p.Hand, t)
		}
	}
	extra, _ := wall.Draw()
	dealer := st.Players[0]
	dealer.Hand = append(dealer.Hand, extra)
	dealer.LastDrawn = &extra

	st.Wall = wall.RemainingTiles()
	st.GameStartedAt = time.Now()
	e.st = st

	e.beginTurn(0, false)

	if err := e.persist(); err != nil {
		e.cancelTurnTimer()
		e.st = nil
		return err
	}
	log.Info("房间 %s 开局, game=%s seed=%d wall=%d", e.roomID, st.GameID, seed, len(st.Wall))
	e.emitSnapshots()
	e.emitTurn()
	return nil
}

// doStartNextRound 结算后开下一局，保留累计分数
func (e *Engine) doStartNextRound(seed int64) error {
	st := e.st
	if st == nil || st.Phase != PhaseSettlement {
		return NewError(CodeActionInvalid, "仅结算阶段可开下一局")
	}
	if st.Round >= st.Config.MaxRounds {
		return NewError(CodeActionInvalid, "已达最大局数 %d", st.Config.MaxRounds)
	}

	wall, err := tile.NewWall(st.Config.Tiles, seed)
	if err != nil {
		return NewError(CodeConfigInvalid, "牌墙构建失败: %v", err)
	}

	st.GameID = newGameID()
	st.Phase = PhasePlaying
	st.Round++
	st.Seed = seed
	st.DiscardPile = nil
	st.LastDiscard = nil
	st.Window = nil
	st.Gangs = nil
	st.Actions = nil
	st.Settlement = nil
	st.TotalTurns = 0
	st.GameStartedAt = time.Now()
	st.GameEndedAt = time.Time{}

	for _, p := range st.Players {
		p.Hand = nil
		p.Melds = nil
		p.LastDrawn = nil
		p.Available = nil
		p.ConsecutiveTimeouts = 0
		// 托管与掉线位跨局保留，重连才解除
		switch p.Status {
		case StatusTrustee, StatusDisconnected:
		default:
			p.Status = StatusWaitingTurn
		}
	}
	for k := 0; k < handSize; k++ {
		for _, p := range st.Players {
			t, _ := wall.Draw()
			p.Hand = append(p.Hand, t)
		}
	}
	extra, _ := wall.Draw()
	dealer := st.Players[0]
	dealer.Hand = append(dealer.Hand, extra)
	dealer.LastDrawn = &extra
	st.Wall = wall.RemainingTiles()
	st.CurrentPlayerIndex = 0

	e.beginTurn(0, false)
	if err := e.persist(); err != nil {
		return err
	}
	log.Info("房间 %s 第 %d 局开始, seed=%d", e.roomID, st.Round, seed)
	e.emitSnapshots()
	e.emitTurn()
	return nil
}

// doSubmit 动作入口，fromEngine 为托管/超时代打
func (e *Engine) doSubmit(userID string, act Action, fromEngine bool) ActionResult {
	st := e.st
	if st == nil {
		return failResult(NewError(CodeRoomGone, "房间 %s 无对局", e.roomID))
	}
	if st.Phase != PhasePlaying {
		return failResult(NewError(CodeActionInvalid, "当前阶段 %s 不接受动作", st.Phase))
	}
	p := st.PlayerByID(userID)
	if p == nil {
		return failResult(NewError(CodeAccessDenied, "用户 %s 不在本局", userID))
	}
	if p.Status == StatusDisconnected && !fromEngine {
		return failResult(NewError(CodeActionInvalid, "玩家处于掉线状态"))
	}
	if p.Status == StatusFinished {
		return failResult(NewError(CodeActionInvalid, "玩家本局已离场"))
	}

	// 流水先于应用写入，终局回调读到的序列包含最后一手；失败则撤销
	e.record(userID, act)
	var err error
	if st.Window != nil && st.Window.eligibleFor(userID, act.Kind) ||
		st.Window != nil && act.Kind == ActPass && len(st.Window.Eligible[userID]) > 0 {
		err = e.applyWindowAction(p, act)
	} else {
		err = e.applyTurnAction(p, act)
	}
	if err != nil {
		st.Actions = st.Actions[:len(st.Actions)-1]
		return failResult(err)
	}

	p.LastActionAt = time.Now()
	p.ActionCount++
	// 玩家亲自提交非 PASS 动作即重新接管
	if !fromEngine && act.Kind != ActPass {
		p.ConsecutiveTimeouts = 0
	}

	if err := e.verifyIntegrity(); err != nil {
		return failResult(err)
	}
	if err := e.persist(); err != nil {
		return failResult(err)
	}
	return okResult(nil)
}

// applyTurnAction 回合内动作：弃牌、暗杠/加杠、自摸胡
func (e *Engine) applyTurnAction(p *PlayerState, act Action) error {
	st := e.st
	if st.Window != nil {
		return NewError(CodeActionNotAvailable, "响应窗口开启期间仅窗口内动作有效")
	}
	if st.CurrentPlayer() != p {
		return NewError(CodeNotYourTurn, "未轮到 %s", p.UserID)
	}
	if !p.CanAct(act.Kind) {
		return NewError(CodeActionNotAvailable, "动作 %s 当前不可用", act.Kind)
	}

	switch act.Kind {
	case ActDiscard:
		return e.applyDiscard(p, act.Tile)
	case ActKong:
		switch act.KongKind {
		case analyzer.KongConcealed:
			return e.applyConcealedKong(p, act.Tile)
		case analyzer.KongUpgraded:
			return e.applyUpgradedKong(p, act.Tile)
		default:
			return NewError(CodeActionInvalid, "明杠只能在响应窗口内宣告")
		}
	case ActHu:
		return e.applySelfDrawHu(p, act.Tile)
	default:
		return NewError(CodeActionNotAvailable, "动作 %s 不属于回合内动作", act.Kind)
	}
}

// applyDiscard 弃牌并视响应方开窗或推进回合
func (e *Engine) applyDiscard(p *PlayerState, t tile.Tile) error {
	st := e.st
	if !p.removeFromHand(t) {
		return NewError(CodeInvalidTile, "手牌中没有 %s", t)
	}
	p.LastDrawn = nil
	p.Available = nil
	// 托管与掉线位不因代打降级
	if p.Status == StatusPlaying || p.Status == StatusWaitingAction {
		p.Status = StatusWaitingTurn
	}
	st.DiscardPile = append(st.DiscardPile, t)
	st.LastDiscard = &Discard{Tile: t, UserID: p.UserID}
	e.cancelTurnTimer()

	e.emitAction(p.UserID, ActDiscard, map[string]any{"tile": t.String()})

	eligible := e.claimantsFor(p, t)
	if len(eligible) == 0 {
		e.beginTurn(st.nextSeat(p.Seat), true)
		e.emitTurn()
		return nil
	}
	e.openWindow(t, p.UserID, eligible, false)
	return nil
}

// canWinOn 共享缓存的常规型判定粗筛，再做完整计番校验
func (e *Engine) canWinOn(q *PlayerState, t tile.Tile, from string) bool {
	h := q.HandCount()
	h[t.Index()]++
	if !e.ana.IsWinning(h, len(q.Melds)) && !(len(q.Melds) == 0 && analyzer.IsSevenPairs(h)) {
		return false
	}
	_, err := rules.EvaluateWin(q.Hand, q.Melds, t, false, q.Dealer, from, e.st.Config)
	return err == nil
}

// claimantsFor 计算弃牌的响应资格集
func (e *Engine) claimantsFor(discarder *PlayerState, t tile.Tile) map[string][]ActionKind {
	st := e.st
	out := make(map[string][]ActionKind)
	for _, q := range st.Players {
		if q == discarder || q.Status == StatusFinished {
			continue
		}
		h := q.HandCount()
		var acts []ActionKind
		if e.canWinOn(q, t, discarder.UserID) {
			acts = append(acts, ActHu)
		}
		if st.Config.AllowKong && analyzer.CanOpenKong(h, t) {
			acts = append(acts, ActKong)
		}
		if st.Config.AllowPong && analyzer.CanPong(h, t) {
			acts = append(acts, ActPong)
		}
		if st.Config.AllowChow && q.Seat == st.nextSeat(discarder.Seat) &&
			len(analyzer.ChowOptions(h, t)) > 0 {
			acts = append(acts, ActChow)
		}
		if len(acts) > 0 {
			out[q.UserID] = append(acts, ActPass)
		}
	}
	return out
}

// openWindow 开启响应窗口；托管与掉线玩家立即代答
func (e *Engine) openWindow(t tile.Tile, discarder string, eligible map[string][]ActionKind, robKong bool) {
	st := e.st
	st.WindowEpoch++
	st.Window = &PendingActionWindow{
		Tile:      t,
		Discarder: discarder,
		Eligible:  eligible,
		Deadline:  time.Now().Add(time.Duration(st.Config.Turn.ActionTimeLimitSeconds) * time.Second),
		Arrivals:  make(map[string]Action),
		Epoch:     st.WindowEpoch,
		RobKong:   robKong,
	}
	for u, acts := range eligible {
		q := st.PlayerByID(u)
		if q.Status == StatusWaitingTurn {
			q.Status = StatusWaitingAction
		}
		q.Available = acts
	}
	e.armWindowTimer(time.Duration(st.Config.Turn.ActionTimeLimitSeconds) * time.Second)

	for u := range eligible {
		q := st.PlayerByID(u)
		if q.Status == StatusTrustee || q.Status == StatusDisconnected {
			st.Window.Arrivals[u] = e.trusteeWindowAction(q)
		}
	}
	e.maybeResolveWindow()
}

// applyWindowAction 收集窗口内到达的动作
func (e *Engine) applyWindowAction(p *PlayerState, act Action) error {
	st := e.st
	w := st.Window
	if _, dup := w.Arrivals[p.UserID]; dup {
		return NewError(CodeActionInvalid, "本窗口已提交过动作")
	}
	if act.Kind != ActPass && !w.eligibleFor(p.UserID, act.Kind) {
		return NewError(CodeActionNotAvailable, "动作 %s 不在响应资格内", act.Kind)
	}

	switch act.Kind {
	case ActPass:
	case ActHu:
		if _, err := rules.EvaluateWin(p.Hand, p.Melds, w.Tile, false, p.Dealer, w.Discarder, st.Config); err != nil {
			return NewError(CodeInvalidWin, "胡牌校验失败: %v", err)
		}
	case ActKong:
		if act.KongKind != analyzer.KongOpen {
			return NewError(CodeActionInvalid, "窗口内只能宣告明杠")
		}
		if act.Tile != w.Tile || !analyzer.CanOpenKong(p.HandCount(), w.Tile) {
			return NewError(CodeInvalidTile, "无法对 %s 开明杠", w.Tile)
		}
	case ActPong:
		if act.Tile != w.Tile || !analyzer.CanPong(p.HandCount(), w.Tile) {
			return NewError(CodeInvalidTile, "无法碰 %s", w.Tile)
		}
	case ActChow:
		if !e.chowFormable(p, act.Sequence, w.Tile) {
			return NewError(CodeInvalidTile, "顺子 %v 不可成型", act.Sequence)
		}
	default:
		return NewError(CodeActionNotAvailable, "动作 %s 不属于窗口动作", act.Kind)
	}

	w.Arrivals[p.UserID] = act
	e.maybeResolveWindow()
	return nil
}

// chowFormable 序列必须含弃牌且其余两张在手
func (e *Engine) chowFormable(p *PlayerState, seq [3]tile.Tile, t tile.Tile) bool {
	if seq[0].Suit != t.Suit || seq[1].Suit != t.Suit || seq[2].Suit != t.Suit {
		return false
	}
	if seq[1].Rank != seq[0].Rank+1 || seq[2].Rank != seq[1].Rank+1 {
		return false
	}
	h := p.HandCount()
	found := false
	for _, s := range seq {
		if s == t && !found {
			found = true
			continue
		}
		if h[s.Index()] == 0 {
			return false
		}
		h[s.Index()]--
	}
	return found
}

// maybeResolveWindow 裁决条件：全员已答，或出现 HU 且无需等待其他 HU
func (e *Engine) maybeResolveWindow() {
	st := e.st
	w := st.Window
	if w == nil {
		return
	}
	if w.allResponded() {
		e.resolveWindow()
		return
	}
	huArrived := false
	for _, a := range w.Arrivals {
		if a.Kind == ActHu {
			huArrived = true
			break
		}
	}
	if !huArrived {
		return
	}
	if !st.Config.Score.MultipleWinners {
		e.resolveWindow()
		return
	}
	// 一炮多响开启时等其余有 HU 资格者表态
	for u, acts := range w.Eligible {
		canHu := false
		for _, a := range acts {
			if a == ActHu {
				canHu = true
			}
		}
		if !canHu {
			continue
		}
		if _, ok := w.Arrivals[u]; !ok {
			return
		}
	}
	e.resolveWindow()
}

// resolveWindow 按优先级裁决窗口，恰好执行一次
func (e *Engine) resolveWindow() {
	st := e.st
	w := st.Window
	st.Window = nil
	e.cancelWindowTimer()

	for u := range w.Eligible {
		q := st.PlayerByID(u)
		if q.Status == StatusWaitingAction {
			q.Status = StatusWaitingTurn
		}
		q.Available = nil
	}

	best := ActPass
	for _, a := range w.Arrivals {
		if a.Kind.priority() > best.priority() {
			best = a.Kind
		}
	}

	if w.RobKong {
		e.resolveRobKong(w, best)
		return
	}

	switch best {
	case ActHu:
		e.executeDiscardHu(w)
	case ActKong:
		e.executeOpenKong(w)
	case ActPong:
		e.executePong(w)
	case ActChow:
		e.executeChow(w)
	default:
		discarder := st.PlayerByID(w.Discarder)
		e.beginTurn(st.nextSeat(discarder.Seat), true)
		e.emitTurn()
	}
}

// pickWinners 一炮多响开启时按放炮者顺时针序返回全部赢家，
// 关闭时取番数最高、其次离放炮者顺时针最近者
func (e *Engine) pickWinners(w *PendingActionWindow) []string {
	st := e.st
	var hus []string
	for u, a := range w.Arrivals {
		if a.Kind == ActHu {
			hus = append(hus, u)
		}
	}
	if len(hus) <= 1 {
		return hus
	}

	discarder := st.PlayerByID(w.Discarder)
	if st.Config.Score.MultipleWinners {
		sort.Slice(hus, func(i, j int) bool {
			return st.seatDistance(discarder.Seat, st.PlayerByID(hus[i]).Seat) <
				st.seatDistance(discarder.Seat, st.PlayerByID(hus[j]).Seat)
		})
		return hus
	}

	bestU := ""
	bestFan := -1
	bestDist := 1 << 30
	for _, u := range hus {
		q := st.PlayerByID(u)
		res, err := rules.EvaluateWin(q.Hand, q.Melds, w.Tile, false, q.Dealer, w.Discarder, st.Config)
		if err != nil {
			continue
		}
		dist := st.seatDistance(discarder.Seat, q.Seat)
		if res.BaseFan > bestFan || res.BaseFan == bestFan && dist < bestDist {
			bestU, bestFan, bestDist = u, res.BaseFan, dist
		}
	}
	return []string{bestU}
}

// executeDiscardHu 弃牌被胡：牌从弃牌堆转入赢家手牌后结算
func (e *Engine) executeDiscardHu(w *PendingActionWindow) {
	st := e.st
	winners := e.pickWinners(w)
	st.DiscardPile = st.DiscardPile[:len(st.DiscardPile)-1]
	st.LastDiscard = nil

	var wins []rules.SettleWin
	for _, u := range winners {
		q := st.PlayerByID(u)
		res, err := rules.EvaluateWin(q.Hand, q.Melds, w.Tile, false, q.Dealer, w.Discarder, st.Config)
		if err != nil {
			log.Error("房间 %s 胡牌裁决阶段校验失败 user=%s: %v", e.roomID, u, err)
			continue
		}
		// 赢家多于一人时弃牌只归第一位，守恒不变
		if len(wins) == 0 {
			q.Hand = append(q.Hand, w.Tile)
		}
		wins = append(wins, rules.SettleWin{UserID: u, Result: res})
	}
	if len(wins) == 0 {
		st.DiscardPile = append(st.DiscardPile, w.Tile)
		discarder := st.PlayerByID(w.Discarder)
		e.beginTurn(st.nextSeat(discarder.Seat), true)
		e.emitTurn()
		return
	}
	e.endGame(rules.EndReasonHu, wins)
}

// executeOpenKong 明杠：占有弃牌、补摸一张并继续本家回合
func (e *Engine) executeOpenKong(w *PendingActionWindow) {
	st := e.st
	u := e.claimantOf(w, ActKong)
	q := st.PlayerByID(u)

	st.DiscardPile = st.DiscardPile[:len(st.DiscardPile)-1]
	st.LastDiscard = nil
	q.removeFromHand(w.Tile, w.Tile, w.Tile)
	q.Melds = append(q.Melds, rules.NewKong(rules.MeldOpenKong, w.Tile, w.Discarder))
	st.Gangs = append(st.Gangs, rules.GangEvent{
		UserID: u, Kind: rules.MeldOpenKong, Tile: w.Tile, ClaimedFrom: w.Discarder,
	})
	e.emitAction(u, ActKong, map[string]any{"tile": w.Tile.String(), "gangType": string(analyzer.KongOpen)})

	st.CurrentPlayerIndex = q.Seat
	e.continueTurnWithDraw(q)
}

// executePong 碰：占有弃牌，本家成为当前玩家且必须弃牌
func (e *Engine) executePong(w *PendingActionWindow) {
	st := e.st
	u := e.claimantOf(w, ActPong)
	q := st.PlayerByID(u)

	st.DiscardPile = st.DiscardPile[:len(st.DiscardPile)-1]
	st.LastDiscard = nil
	q.removeFromHand(w.Tile, w.Tile)
	q.Melds = append(q.Melds, rules.NewPong(w.Tile, w.Discarder))
	e.emitAction(u, ActPong, map[string]any{"tile": w.Tile.String()})

	st.CurrentPlayerIndex = q.Seat
	e.continueTurnNoDraw(q)
}

// executeChow 吃：下家占有弃牌成顺
func (e *Engine) executeChow(w *PendingActionWindow) {
	st := e.st
	u := e.claimantOf(w, ActChow)
	q := st.PlayerByID(u)
	act := w.Arrivals[u]

	st.DiscardPile = st.DiscardPile[:len(st.DiscardPile)-1]
	st.LastDiscard = nil
	for _, s := range act.Sequence {
		if s != w.Tile {
			q.removeFromHand(s)
		}
	}
	q.Melds = append(q.Melds, rules.NewChow(act.Sequence, w.Discarder))
	e.emitAction(u, ActChow, map[string]any{"tile": w.Tile.String(), "sequence": act.Sequence})

	st.CurrentPlayerIndex = q.Seat
	e.continueTurnNoDraw(q)
}

func (e *Engine) claimantOf(w *PendingActionWindow, k ActionKind) string {
	for u, a := range w.Arrivals {
		if a.Kind == k {
			return u
		}
	}
	return ""
}

// applyConcealedKong 暗杠后补摸并继续回合
func (e *Engine) applyConcealedKong(p *PlayerState, t tile.Tile) error {
	st := e.st
	if !st.Config.AllowKong {
		return NewError(CodeActionNotAvailable, "规则不允许杠")
	}
	if p.HandCount()[t.Index()] < 4 {
		return NewError(CodeInvalidTile, "手牌不足 4 张 %s", t)
	}
	p.removeFromHand(t, t, t, t)
	p.Melds = append(p.Melds, rules.NewKong(rules.MeldConcealedKong, t, ""))
	st.Gangs = append(st.Gangs, rules.GangEvent{UserID: p.UserID, Kind: rules.MeldConcealedKong, Tile: t})
	e.emitAction(p.UserID, ActKong, map[string]any{"gangType": string(analyzer.KongConcealed)})

	e.cancelTurnTimer()
	e.continueTurnWithDraw(p)
	return nil
}

// applyUpgradedKong 加杠：先开抢杠窗口，无人胡再成杠
func (e *Engine) applyUpgradedKong(p *PlayerState, t tile.Tile) error {
	st := e.st
	if !st.Config.AllowKong {
		return NewError(CodeActionNotAvailable, "规则不允许杠")
	}
	pongAt := -1
	for i, m := range p.Melds {
		if m.Kind == rules.MeldPong && m.Tiles[0] == t {
			pongAt = i
		}
	}
	if pongAt < 0 {
		return NewError(CodeInvalidTile, "没有 %s 的碰可升级", t)
	}
	if !p.removeFromHand(t) {
		return NewError(CodeInvalidTile, "手牌中没有 %s", t)
	}

	// 第 4 张暂存在窗口上，被抢则直接归赢家
	eligible := make(map[string][]ActionKind)
	for _, q := range st.Players {
		if q == p || q.Status == StatusFinished {
			continue
		}
		if e.canWinOn(q, t, p.UserID) {
			eligible[q.UserID] = []ActionKind{ActHu, ActPass}
		}
	}
	if len(eligible) == 0 {
		e.completeUpgradedKong(p, t, pongAt)
		return nil
	}
	e.cancelTurnTimer()
	e.openWindow(t, p.UserID, eligible, true)
	return nil
}

// resolveRobKong 抢杠窗口裁决：有 HU 即抢，否则成杠
func (e *Engine) resolveRobKong(w *PendingActionWindow, best ActionKind) {
	st := e.st
	owner := st.PlayerByID(w.Discarder)

	if best != ActHu {
		pongAt := -1
		for i, m := range owner.Melds {
			if m.Kind == rules.MeldPong && m.Tiles[0] == w.Tile {
				pongAt = i
			}
		}
		e.completeUpgradedKong(owner, w.Tile, pongAt)
		return
	}

	winners := e.pickWinners(w)
	var wins []rules.SettleWin
	for _, u := range winners {
		q := st.PlayerByID(u)
		res, err := rules.EvaluateWin(q.Hand, q.Melds, w.Tile, false, q.Dealer, w.Discarder, st.Config)
		if err != nil {
			log.Error("房间 %s 抢杠校验失败 user=%s: %v", e.roomID, u, err)
			continue
		}
		if len(wins) == 0 {
			q.Hand = append(q.Hand, w.Tile)
		}
		wins = append(wins, rules.SettleWin{UserID: u, Result: res})
	}
	if len(wins) == 0 {
		pongAt := -1
		for i, m := range owner.Melds {
			if m.Kind == rules.MeldPong && m.Tiles[0] == w.Tile {
				pongAt = i
			}
		}
		e.completeUpgradedKong(owner, w.Tile, pongAt)
		return
	}
	e.emitAction(wins[0].UserID, ActHu, map[string]any{"robKong": true, "tile": w.Tile.String()})
	e.endGame(rules.EndReasonHu, wins)
}

// completeUpgradedKong 加杠成立：碰升级为杠、补摸、继续回合
func (e *Engine) completeUpgradedKong(p *PlayerState, t tile.Tile, pongAt int) {
	st := e.st
	claimedFrom := ""
	if pongAt >= 0 {
		claimedFrom = p.Melds[pongAt].ClaimedFrom
		p.Melds[pongAt] = rules.NewKong(rules.MeldUpgradedKong, t, claimedFrom)
	}
	st.Gangs = append(st.Gangs, rules.GangEvent{
		UserID: p.UserID, Kind: rules.MeldUpgradedKong, Tile: t, ClaimedFrom: claimedFrom,
	})
	e.emitAction(p.UserID, ActKong, map[string]any{"tile": t.String(), "gangType": string(analyzer.KongUpgraded)})
	e.cancelTurnTimer()
	e.continueTurnWithDraw(p)
}

// applySelfDrawHu 自摸胡
func (e *Engine) applySelfDrawHu(p *PlayerState, winning tile.Tile) error {
	st := e.st
	if !p.removeFromHand(winning) {
		return NewError(CodeInvalidTile, "手牌中没有 %s", winning)
	}
	res, err := rules.EvaluateWin(p.Hand, p.Melds, winning, true, p.Dealer, "", st.Config)
	if err != nil {
		p.Hand = append(p.Hand, winning)
		return NewError(CodeInvalidWin, "胡牌校验失败: %v", err)
	}
	p.Hand = append(p.Hand, winning)
	e.emitAction(p.UserID, ActHu, map[string]any{"tile": winning.String(), "selfDraw": true})
	e.endGame(rules.EndReasonHu, []rules.SettleWin{{UserID: p.UserID, Result: res}})
	return nil
}

// beginTurn 指定座位开始回合，draw 控制是否摸牌
func (e *Engine) beginTurn(seat int, draw bool) {
	st := e.st
	st.CurrentPlayerIndex = seat
	p := st.Players[seat]
	if draw {
		if len(st.Wall) == 0 {
			e.endGame(rules.EndReasonDraw, nil)
			return
		}
		t := st.Wall[0]
		st.Wall = st.Wall[1:]
		p.Hand = append(p.Hand, t)
		p.LastDrawn = &t
	}
	st.TotalTurns++
	e.setupTurn(p)
}

// continueTurnWithDraw 杠后补摸继续本家回合
func (e *Engine) continueTurnWithDraw(p *PlayerState) {
	st := e.st
	if len(st.Wall) == 0 {
		e.endGame(rules.EndReasonDraw, nil)
		return
	}
	t := st.Wall[0]
	st.Wall = st.Wall[1:]
	p.Hand = append(p.Hand, t)
	p.LastDrawn = &t
	e.setupTurn(p)
	e.emitTurn()
}

// continueTurnNoDraw 碰/吃后不摸牌，本家必须弃牌
func (e *Engine) continueTurnNoDraw(p *PlayerState) {
	p.LastDrawn = nil
	e.setupTurn(p)
	e.emitTurn()
}

// setupTurn 刷新状态、可用动作并武装回合计时器
func (e *Engine) setupTurn(p *PlayerState) {
	st := e.st
	for _, q := range st.Players {
		switch q.Status {
		case StatusTrustee, StatusDisconnected, StatusFinished:
		default:
			if q == p {
				q.Status = StatusPlaying
			} else {
				q.Status = StatusWaitingTurn
				q.Available = nil
			}
		}
	}
	p.Available = e.turnActionsFor(p)
	st.TurnStartedAt = time.Now()
	st.TurnDeadline = st.TurnStartedAt.Add(time.Duration(st.Config.Turn.TurnTimeLimitSeconds) * time.Second)
	st.TurnEpoch++
	e.armTurnTimer(time.Duration(st.Config.Turn.TurnTimeLimitSeconds) * time.Second)

	if (p.Status == StatusTrustee || p.Status == StatusDisconnected) && st.Config.Turn.AutoTrustee {
		e.trusteePlay(p)
	}
}

// turnActionsFor 回合内可用动作集
func (e *Engine) turnActionsFor(p *PlayerState) []ActionKind {
	st := e.st
	acts := []ActionKind{ActDiscard}

	if p.LastDrawn != nil {
		rest := make([]tile.Tile, 0, len(p.Hand))
		h := *p.LastDrawn
		skipped := false
		for _, t := range p.Hand {
			if t == h && !skipped {
				skipped = true
				continue
			}
			rest = append(rest, t)
		}
		if _, err := rules.EvaluateWin(rest, p.Melds, h, true, p.Dealer, "", st.Config); err == nil {
			acts = append(acts, ActHu)
		}
	}
	if st.Config.AllowKong {
		hc := p.HandCount()
		kong := len(analyzer.ConcealedKongs(hc)) > 0
		if !kong {
			for _, m := range p.Melds {
				if m.Kind == rules.MeldPong && analyzer.CanUpgradeKong(hc, m.Tiles[0]) {
					kong = true
				}
			}
		}
		if kong {
			acts = append(acts, ActKong)
		}
	}
	return acts
}

// endGame 结束本局并结算
func (e *Engine) endGame(reason string, wins []rules.SettleWin) {
	st := e.st
	e.cancelTurnTimer()
	e.cancelWindowTimer()
	st.Window = nil
	st.GameEndedAt = time.Now()

	in := rules.SettleInput{Reason: reason, Wins: wins, Gangs: st.Gangs}
	for _, p := range st.Players {
		in.Players = append(in.Players, rules.SettlePlayer{
			UserID: p.UserID, Seat: p.Seat, Dealer: p.Dealer,
		})
	}
	res := rules.Settle(in, st.Config)
	st.Settlement = &res
	for _, p := range st.Players {
		p.Score += res.FinalScores[p.UserID]
		p.Available = nil
	}

	st.Phase = PhaseSettlement

	if !st.checkConservation() {
		log.Error("房间 %s 结算时牌张守恒被破坏, game=%s", e.roomID, st.GameID)
	}
	log.Info("房间 %s 第 %d 局结束, reason=%s scores=%v", e.roomID, st.Round, reason, res.FinalScores)
	e.emitSnapshots()
	e.emit.BroadcastToRoom(e.roomID, Event{Type: EventSettlement, RoomID: e.roomID, Data: res}, "")
	// 末局结算公示完成即终局
	if st.Round >= st.Config.MaxRounds {
		st.Phase = PhaseFinished
	}
	if e.opts.OnGameEnd != nil {
		e.opts.OnGameEnd(st)
	}
}

// doDisconnect 掉线：状态置位，窗口内未表态则代 PASS
func (e *Engine) doDisconnect(userID string) error {
	st := e.st
	if st == nil {
		return NewError(CodeRoomGone, "房间 %s 无对局", e.roomID)
	}
	p := st.PlayerByID(userID)
	if p == nil {
		return NewError(CodeAccessDenied, "用户 %s 不在本局", userID)
	}
	if p.Status == StatusDisconnected {
		return nil
	}
	p.Status = StatusDisconnected
	e.emit.BroadcastToRoom(e.roomID, Event{
		Type: EventRoom, RoomID: e.roomID,
		Data: map[string]any{"event": RoomEvPlayerDisconnected, "userId": userID},
	}, "")

	if w := st.Window; w != nil && len(w.Eligible[userID]) > 0 {
		if _, ok := w.Arrivals[userID]; !ok {
			w.Arrivals[userID] = Action{Kind: ActPass}
			e.maybeResolveWindow()
		}
	}
	return e.persist()
}

// doReconnect 恢复在线状态并回发快照；重复调用效果一致
func (e *Engine) doReconnect(userID string) (*GameSnapshot, error) {
	st := e.st
	if st == nil {
		return nil, NewError(CodeRoomGone, "房间 %s 无对局", e.roomID)
	}
	p := st.PlayerByID(userID)
	if p == nil {
		return nil, NewError(CodeAccessDenied, "用户 %s 不在本局", userID)
	}

	if p.Status == StatusDisconnected || p.Status == StatusTrustee {
		switch {
		case st.Phase != PhasePlaying:
			p.Status = StatusWaitingTurn
		case st.Window != nil && len(st.Window.Eligible[userID]) > 0:
			p.Status = StatusWaitingAction
			p.Available = st.Window.Eligible[userID]
		case st.CurrentPlayer() == p:
			p.Status = StatusPlaying
			p.Available = e.turnActionsFor(p)
		default:
			p.Status = StatusWaitingTurn
		}
		p.ConsecutiveTimeouts = 0
		if err := e.persist(); err != nil {
			return nil, err
		}
		e.emit.BroadcastToRoom(e.roomID, Event{
			Type: EventRoom, RoomID: e.roomID,
			Data: map[string]any{"event": RoomEvPlayerReconnected, "userId": userID},
		}, userID)
	}
	return snapshotFor(st, userID), nil
}

// doSetTrustee 宽限期耗尽，切托管续局
func (e *Engine) doSetTrustee(userID string) error {
	st := e.st
	if st == nil {
		return NewError(CodeRoomGone, "房间 %s 无对局", e.roomID)
	}
	p := st.PlayerByID(userID)
	if p == nil {
		return NewError(CodeAccessDenied, "用户 %s 不在本局", userID)
	}
	if p.Status == StatusTrustee || p.Status == StatusFinished {
		return nil
	}
	p.Status = StatusTrustee
	log.Info("房间 %s 玩家 %s 进入托管", e.roomID, userID)

	if st.Phase == PhasePlaying && st.Window == nil && st.CurrentPlayer() == p && st.Config.Turn.AutoTrustee {
		e.trusteePlay(p)
	}
	return e.persist()
}

func (e *Engine) doMarkStatus(userID string, status PlayerStatus) error {
	st := e.st
	if st == nil {
		return NewError(CodeRoomGone, "房间 %s 无对局", e.roomID)
	}
	p := st.PlayerByID(userID)
	if p == nil {
		return NewError(CodeAccessDenied, "用户 %s 不在本局", userID)
	}
	p.Status = status
	return e.persist()
}

// record 动作流水
func (e *Engine) record(userID string, act Action) {
	st := e.st
	if st == nil {
		return
	}
	st.Actions = append(st.Actions, ActionRecord{
		Seq:    len(st.Actions) + 1,
		UserID: userID,
		Action: act,
		At:     time.Now(),
	})
}

func (e *Engine) emitAction(userID string, kind ActionKind, data map[string]any) {
	e.emit.BroadcastToRoom(e.roomID, Event{
		Type:   EventAction,
		RoomID: e.roomID,
		Data:   map[string]any{"userId": userID, "action": string(kind), "data": data},
	}, "")
}

func (e *Engine) emitTurn() {
	st := e.st
	if st == nil || st.Phase != PhasePlaying {
		return
	}
	p := st.CurrentPlayer()
	e.emit.BroadcastToRoom(e.roomID, Event{
		Type:   EventTurn,
		RoomID: e.roomID,
		Data: map[string]any{
			"currentUserId":      p.UserID,
			"currentPlayerIndex": st.CurrentPlayerIndex,
			"deadline":           st.TurnDeadline,
		},
	}, "")
}

func (e *Engine) emitSnapshots() {
	st := e.st
	if st == nil {
		return
	}
	for _, p := range st.Players {
		e.emit.SendToUser(p.UserID, Event{
			Type:   EventSnapshot,
			RoomID: e.roomID,
			Data:   snapshotFor(st, p.UserID),
		})
	}
}
