package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/pkg/logger"
)

// Level ranks an alert's severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Alert is one operational notification derived from pipeline output.
type Alert struct {
	SessionID string    `json:"session_id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Notifier delivers alerts to an external channel.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log. It is the default sink
// when no external channel is configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("notifier")}
}

// Send logs the alert.
func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	n.log.WithField("session", alert.SessionID).
		WithField("level", alert.Level).
		WithField("title", alert.Title).
		Warn(alert.Message)
	return nil
}

// BuildAlerts derives alerts from a fresh forecast and insight set. Both
// inputs may be nil; nil inputs simply contribute no alerts.
func BuildAlerts(sessionID string, fc *contracts.Forecast, set *contracts.InsightSet, opts contracts.InsightOptions) []Alert {
	now := time.Now().UTC()
	var alerts []Alert

	if fc != nil && set != nil && set.Profile.AvgDaily > 0 &&
		fc.Summary.PeakValue > opts.PeakMultiplier*set.Profile.AvgDaily {
		alerts = append(alerts, Alert{
			SessionID: sessionID,
			Level:     LevelWarning,
			Title:     "demand peak ahead",
			Message: fmt.Sprintf("forecast peaks at %.0f units on %s, %.1fx the daily average",
				fc.Summary.PeakValue,
				fc.Summary.PeakDate.Format("2006-01-02"),
				fc.Summary.PeakValue/set.Profile.AvgDaily),
			At: now,
		})
	}

	if set != nil && set.Profile.Volatility > 0.5 {
		alerts = append(alerts, Alert{
			SessionID: sessionID,
			Level:     LevelWarning,
			Title:     "volatile demand",
			Message: fmt.Sprintf("demand volatility %.2f exceeds 0.50; safety stock of %.0f units advised",
				set.Profile.Volatility, set.Reorder.SafetyStock),
			At: now,
		})
	}

	if fc != nil && fc.Summary.Trend == "decreasing" {
		alerts = append(alerts, Alert{
			SessionID: sessionID,
			Level:     LevelInfo,
			Title:     "demand cooling off",
			Message: fmt.Sprintf("forecast trend is decreasing; horizon total %.0f units",
				fc.Summary.Total),
			At: now,
		})
	}

	return alerts
}
