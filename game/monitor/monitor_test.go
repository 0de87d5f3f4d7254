package monitor

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fixedStats struct{ rooms, players int }

func (s fixedStats) Stats() (int, int) { return s.rooms, s.players }

type recordReporter struct {
	mu    sync.Mutex
	loads []float64
}

func (r *recordReporter) UpdateLoad(load float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads = append(r.loads, load)
	return nil
}

func (r *recordReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loads)
}

func TestCalculateLoadWeights(t *testing.T) {
	li := &LoadInfo{RoomCount: 50, PlayerCount: 100, CPUUsage: 40, MemUsage: 20}
	// 40*0.3 + 20*0.2 + 50*0.25 + 100*0.25 = 53.5
	if got := li.CalculateLoad(); got != 53.5 {
		t.Fatalf("负载评分 = %v, 期望 53.5", got)
	}

	// 房间/玩家超过 100 封顶
	li = &LoadInfo{RoomCount: 500, PlayerCount: 1500}
	if got := li.CalculateLoad(); got != 50.0 {
		t.Fatalf("封顶后评分 = %v, 期望 50", got)
	}
}

func TestMonitorReportsPeriodically(t *testing.T) {
	rep := &recordReporter{}
	m := NewMonitor(fixedStats{rooms: 3, players: 9}, rep, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Start(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for rep.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if rep.count() < 3 {
		t.Fatalf("上报 %d 次, 期望至少 3 次", rep.count())
	}
}
