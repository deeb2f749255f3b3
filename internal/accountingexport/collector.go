// Package accountingexport publishes month-to-date accounting gauges and
// pushes them to an external metrics store.
package accountingexport

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/clock"
	subscriptiondomain "github.com/lukasai/lukas/internal/subscription/domain"
)

type FeatureTotals struct {
	Feature    string
	UsageCount int64
	TotalCost  float64
}

type PlanTotals struct {
	PlanCode string
	Active   int64
}

// Snapshot is the state of the current calendar month across all users.
type Snapshot struct {
	PeriodStart time.Time
	Features    []FeatureTotals
	Plans       []PlanTotals
}

// Collector owns the gauges and refreshes them from the database.
type Collector struct {
	db       *gorm.DB
	clock    clock.Clock
	registry *prometheus.Registry

	usageEvents         *prometheus.GaugeVec
	spend               *prometheus.GaugeVec
	activeSubscriptions *prometheus.GaugeVec
	lastRefresh         prometheus.Gauge
}

func NewCollector(db *gorm.DB, clk clock.Clock, constLabels prometheus.Labels) *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		db:       db,
		clock:    clk,
		registry: registry,
		usageEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "lukas_accounting_usage_events",
			Help:        "Net usage events recorded in the current calendar month.",
			ConstLabels: constLabels,
		}, []string{"feature"}),
		spend: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "lukas_accounting_spend_usd",
			Help:        "Net AI spend in the current calendar month.",
			ConstLabels: constLabels,
		}, []string{"feature"}),
		activeSubscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "lukas_accounting_active_subscriptions",
			Help:        "Active subscriptions per plan.",
			ConstLabels: constLabels,
		}, []string{"plan"}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "lukas_accounting_last_refresh_timestamp_seconds",
			Help:        "Unix time of the last successful refresh.",
			ConstLabels: constLabels,
		}),
	}
	registry.MustRegister(c.usageEvents, c.spend, c.activeSubscriptions, c.lastRefresh)
	return c
}

func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// Snapshot reads month-to-date totals. Compensation rows carry negative units
// and cost, so the sums are net.
func (c *Collector) Snapshot(ctx context.Context) (Snapshot, error) {
	start, end := clock.MonthBounds(c.clock.Now())
	out := Snapshot{PeriodStart: start}

	var features []struct {
		Feature    string
		UsageCount int64
		TotalCost  float64
	}
	err := c.db.WithContext(ctx).
		Table("usage_events").
		Select("feature, COALESCE(SUM(units), 0) AS usage_count, COALESCE(SUM(cost), 0) AS total_cost").
		Where("occurred_at >= ? AND occurred_at < ?", start, end).
		Group("feature").
		Order("feature").
		Scan(&features).Error
	if err != nil {
		return Snapshot{}, err
	}
	for _, row := range features {
		out.Features = append(out.Features, FeatureTotals{
			Feature:    row.Feature,
			UsageCount: row.UsageCount,
			TotalCost:  row.TotalCost,
		})
	}

	var plans []struct {
		PlanCode string
		Active   int64
	}
	err = c.db.WithContext(ctx).
		Table("user_subscriptions").
		Select("plan_code, COUNT(*) AS active").
		Where("status = ?", string(subscriptiondomain.SubscriptionStatusActive)).
		Group("plan_code").
		Order("plan_code").
		Scan(&plans).Error
	if err != nil {
		return Snapshot{}, err
	}
	for _, row := range plans {
		out.Plans = append(out.Plans, PlanTotals{PlanCode: row.PlanCode, Active: row.Active})
	}

	return out, nil
}

// Refresh replaces every gauge with the current snapshot.
func (c *Collector) Refresh(ctx context.Context) error {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}

	c.usageEvents.Reset()
	c.spend.Reset()
	c.activeSubscriptions.Reset()
	for _, f := range snap.Features {
		label := normalizeLabel(f.Feature)
		c.usageEvents.WithLabelValues(label).Set(float64(f.UsageCount))
		c.spend.WithLabelValues(label).Set(f.TotalCost)
	}
	for _, p := range snap.Plans {
		c.activeSubscriptions.WithLabelValues(normalizeLabel(p.PlanCode)).Set(float64(p.Active))
	}
	c.lastRefresh.Set(float64(c.clock.Now().Unix()))
	return nil
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
