package app

import (
	"context"
	"errors"
	"time"

	"dayahead/internal/alerting"
)

// SimulateAlert 发送一条模拟的后端写入失败告警, 用于验证告警通道。
func (a *App) SimulateAlert(ctx context.Context, backend string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("未配置任何告警通道")
	}

	now := time.Now().UTC()
	start := now.Truncate(24 * time.Hour)
	return notifier.Notify(ctx, alerting.Notification{
		At:          now,
		PassID:      "simulated",
		Pair:        a.Config.Entsoe.Pair().String(),
		Backend:     backend,
		WindowStart: start,
		WindowEnd:   start.AddDate(0, 0, a.Config.Sync.IntervalDays),
		Error:       "simulated backend failure",
	})
}
