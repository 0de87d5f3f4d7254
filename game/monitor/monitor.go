package monitor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/JackieWYB/majiang-sub001/common/log"
)

// LoadInfo 节点负载信息
type LoadInfo struct {
	RoomCount   int     // 活跃房间数
	PlayerCount int     // 在座玩家数
	CPUUsage    float64 // CPU 使用率 0-100
	MemUsage    float64 // 内存使用率 0-100
}

// CalculateLoad 综合负载评分，权重：CPU 30%、内存 20%、房间 25%、玩家 25%
// 房间/玩家按 100 归一化，评分越小负载越低
func (li *LoadInfo) CalculateLoad() float64 {
	rooms := float64(li.RoomCount) / 100.0
	if rooms > 1.0 {
		rooms = 1.0
	}
	players := float64(li.PlayerCount) / 100.0
	if players > 1.0 {
		players = 1.0
	}
	return li.CPUUsage*0.3 + li.MemUsage*0.2 + rooms*100*0.25 + players*100*0.25
}

// StatsSource 房间与玩家统计，room.Manager 满足
type StatsSource interface {
	Stats() (roomCount, playerCount int)
}

// LoadReporter 负载上报，discovery.Registry 满足
type LoadReporter interface {
	UpdateLoad(load float64) error
}

// Monitor 周期采集房间数、玩家数与系统资源并上报 etcd
type Monitor struct {
	stats    StatsSource
	reporter LoadReporter
	interval time.Duration
	stopCh   chan struct{}
}

func NewMonitor(stats StatsSource, reporter LoadReporter, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		stats:    stats,
		reporter: reporter,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start 阻塞运行直到 ctx 取消或 Stop
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.report()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.report()
		}
	}
}

func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) report() {
	info := m.collect()
	load := info.CalculateLoad()
	if err := m.reporter.UpdateLoad(load); err != nil {
		log.Error("负载上报失败: %v", err)
		return
	}
	log.Debug("负载上报: load=%.2f rooms=%d players=%d cpu=%.1f%% mem=%.1f%%",
		load, info.RoomCount, info.PlayerCount, info.CPUUsage, info.MemUsage)
}

func (m *Monitor) collect() *LoadInfo {
	rooms, players := m.stats.Stats()
	info := &LoadInfo{RoomCount: rooms, PlayerCount: players}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUUsage = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemUsage = vm.UsedPercent
	}
	return info
}
