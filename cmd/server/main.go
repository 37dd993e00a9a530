package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"organizerpro/backend/config"
	applogger "organizerpro/backend/pkg/logger"
)

const programName = "organizerpro"

var globalFlags = struct {
	configFile string
	debug      bool
}{}

// bootstrap 加载配置并初始化日志，所有子命令共用
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(globalFlags.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if globalFlags.debug {
		cfg.Log.Level = "debug"
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "考勤对账服务",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd, args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "开启调试日志与 SQL 日志")

	rootCmd.AddCommand(serveCommand(), migrateCommand(), tokenCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
