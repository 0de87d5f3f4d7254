package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JackieWYB/majiang-sub001/app"
	"github.com/JackieWYB/majiang-sub001/common/config"
	"github.com/JackieWYB/majiang-sub001/common/log"
	"github.com/JackieWYB/majiang-sub001/common/metrics"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "game",
	Short: "game 游戏服",
	Long:  `三人血战麻将游戏服`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Load(configFile); err != nil {
			log.Fatal("文件配置发生错误：%v", err)
		}
		log.InitLog(config.ServerConfig.ID, config.ServerConfig.LogConf.Level)
		log.Info("节点 %s 启动", config.ServerConfig.ID)

		go func() {
			log.Info("启动监控..., URL: http://localhost:%d/debug/statsviz/", config.ServerConfig.MetricPort)
			if err := metrics.Serve(fmt.Sprintf("0.0.0.0:%d", config.ServerConfig.MetricPort)); err != nil {
				panic(err)
			}
		}()

		if err := app.Run(context.Background()); err != nil {
			log.Error("发生异常: %v", err)
			os.Exit(-1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "configFile", "", "resource file")
	rootCmd.MarkFlagRequired("configFile")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("error happen: %#v", err)
		os.Exit(1)
	}
}
