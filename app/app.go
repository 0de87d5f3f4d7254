package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JackieWYB/majiang-sub001/common/config"
	"github.com/JackieWYB/majiang-sub001/common/log"
)

const sweepInterval = time.Minute

func Run(ctx context.Context) error {
	c, err := NewContainer(config.ServerConfig)
	if err != nil {
		log.Error("game 容器初始化失败: %v", err)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.Monitor.Start(runCtx)
	go sweepLoop(runCtx, c)

	if err := c.Worker.Run(runCtx); err != nil {
		log.Error("worker 启动失败: %v", err)
		c.Close()
		return err
	}

	stop := func() {
		log.Info("正在关闭 game 服务...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		done := make(chan struct{})
		go func() {
			if err := c.Close(); err != nil {
				log.Warn("关闭 game 容器失败: %v", err)
			}
			close(done)
		}()

		select {
		case <-done:
			log.Info("game 服务已关闭")
		case <-shutdownCtx.Done():
			log.Warn("关闭 game 服务超时（5秒）")
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGHUP)
	for {
		select {
		case <-ctx.Done():
			stop()
			return nil
		case s := <-sig:
			switch s {
			case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT:
				stop()
				log.Info("中断信号，服务停止")
				return nil
			case syscall.SIGHUP:
				stop()
				log.Info("挂起信号，服务停止")
				return nil
			default:
				return nil
			}
		}
	}
}

// sweepLoop 周期回收闲置房间
func sweepLoop(ctx context.Context, c *Container) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Dispatcher.SweepInactiveRooms(ctx)
		}
	}
}
