package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var simulateBackend string

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次后端写入失败并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(simulateBackend) == "" {
			return errors.New("--backend 不能为空")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateBackend)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateBackend, "backend", "clickhouse", "模拟失败的后端名称")
}
