/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/clmops/approval-engine/internal/api"
	"github.com/clmops/approval-engine/internal/config"
	"github.com/clmops/approval-engine/internal/container"
	"github.com/spf13/cobra"
)

// sweepCmd represents the sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Escalate overdue approval requests once and exit",
	Long: `Scan all pending approval requests whose deadline has passed and
escalate each one according to its rule. This is the same scan the server
runs periodically; the command exists for cron-style scheduling and for
operators who want to trigger an escalation pass by hand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 初始化日志与容器
		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		ctr, err := container.NewContainer(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 3. 执行一次升级扫描
		count, err := ctr.Engine().Sweep(context.Background())
		if err != nil {
			return fmt.Errorf("escalation sweep failed: %w", err)
		}

		log.Printf("Escalation sweep completed, %d request(s) escalated", count)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
}
