package engine

import (
	"time"

	"github.com/JackieWYB/majiang-sub001/common/log"
)

// 定时器到期后把自己投递回 lane，携带到期时的 epoch；
// 过期 epoch 直接丢弃，取代监听器反注册

func (e *Engine) armTurnTimer(d time.Duration) {
	e.cancelTurnTimer()
	if d <= 0 {
		d = time.Millisecond
	}
	epoch := e.st.TurnEpoch
	e.turnTimer = time.AfterFunc(d, func() {
		if err := e.post(func() { e.onTurnTimeout(epoch) }); err != nil {
			log.Warn("房间 %s 回合超时投递失败: %v", e.roomID, err)
		}
	})
}

func (e *Engine) cancelTurnTimer() {
	if e.turnTimer != nil {
		e.turnTimer.Stop()
		e.turnTimer = nil
	}
}

func (e *Engine) armWindowTimer(d time.Duration) {
	e.cancelWindowTimer()
	if d <= 0 {
		d = time.Millisecond
	}
	epoch := e.st.WindowEpoch
	e.windowTimer = time.AfterFunc(d, func() {
		if err := e.post(func() { e.onWindowTimeout(epoch) }); err != nil {
			log.Warn("房间 %s 窗口超时投递失败: %v", e.roomID, err)
		}
	})
}

func (e *Engine) cancelWindowTimer() {
	if e.windowTimer != nil {
		e.windowTimer.Stop()
		e.windowTimer = nil
	}
}

// onTurnTimeout 回合超时：计数递增，满三次锁定托管；autoTrustee 开启时代打
func (e *Engine) onTurnTimeout(epoch uint64) {
	st := e.st
	if st == nil || st.Phase != PhasePlaying || st.TurnEpoch != epoch || st.Window != nil {
		return
	}
	p := st.CurrentPlayer()
	if p == nil {
		return
	}

	p.ConsecutiveTimeouts++
	log.Info("房间 %s 玩家 %s 回合超时 %d 次", e.roomID, p.UserID, p.ConsecutiveTimeouts)
	if p.ConsecutiveTimeouts >= trusteePinThreshold && p.Status != StatusDisconnected {
		p.Status = StatusTrustee
	}

	if !st.Config.Turn.AutoTrustee {
		// 不代打则重置本回合期限，等待玩家
		st.TurnDeadline = time.Now().Add(time.Duration(st.Config.Turn.TurnTimeLimitSeconds) * time.Second)
		e.armTurnTimer(time.Duration(st.Config.Turn.TurnTimeLimitSeconds) * time.Second)
		if err := e.persist(); err != nil {
			log.Error("房间 %s 超时状态写入失败: %v", e.roomID, err)
		}
		return
	}
	e.trusteePlay(p)
	if err := e.persist(); err != nil {
		log.Error("房间 %s 超时代打写入失败: %v", e.roomID, err)
	}
}

// onWindowTimeout 窗口超时：未表态者一律按 PASS 裁决
func (e *Engine) onWindowTimeout(epoch uint64) {
	st := e.st
	if st == nil || st.Phase != PhasePlaying || st.Window == nil || st.Window.Epoch != epoch {
		return
	}
	w := st.Window
	for u := range w.Eligible {
		if _, ok := w.Arrivals[u]; !ok {
			w.Arrivals[u] = Action{Kind: ActPass}
		}
	}
	e.resolveWindow()
	if err := e.verifyIntegrity(); err != nil {
		log.Error("房间 %s 窗口裁决后状态异常: %v", e.roomID, err)
		return
	}
	if err := e.persist(); err != nil {
		log.Error("房间 %s 窗口裁决写入失败: %v", e.roomID, err)
	}
}
