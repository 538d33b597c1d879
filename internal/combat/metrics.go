package combat

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Garsondee/Driftwar/internal/combat"


// Metrics holds the combat instruments. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	battles metric.Int64Counter
	ended   metric.Int64Counter
	deaths  metric.Int64Counter
	honor   metric.Int64Counter
}

// NewMetrics registers the combat instruments on mp, or on the global
// provider when mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(instrumentationName)
	var err error
	out := &Metrics{}

	out.battles, err = m.Int64Counter(
		"driftwar.combat.battles_started",
		metric.WithDescription("Battles triggered"),
	)
	if err != nil {
		return nil, fmt.Errorf("battles_started counter: %w", err)
	}
	out.ended, err = m.Int64Counter(
		"driftwar.combat.battles_ended",
		metric.WithDescription("Battles ended, by outcome and reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("battles_ended counter: %w", err)
	}
	out.deaths, err = m.Int64Counter(
		"driftwar.combat.unit_deaths",
		metric.WithDescription("Units killed, by team"),
	)
	if err != nil {
		return nil, fmt.Errorf("unit_deaths counter: %w", err)
	}
	out.honor, err = m.Int64Counter(
		"driftwar.combat.honor_changes",
		metric.WithDescription("Ledger adjustments from decisive battles"),
	)
	if err != nil {
		return nil, fmt.Errorf("honor_changes counter: %w", err)
	}
	return out, nil
}

func (m *Metrics) battleStarted() {
	if m == nil {
		return
	}
	m.battles.Add(context.Background(), 1)
}

func (m *Metrics) battleEnded(r BattleResult) {
	if m == nil {
		return
	}
	m.ended.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("outcome", r.Outcome.String()),
		attribute.String("reason", r.Reason.String()),
	))
}

func (m *Metrics) unitKilled(team Team) {
	if m == nil {
		return
	}
	m.deaths.Add(context.Background(), 1, metric.WithAttributes(attribute.String("team", team.String())))
}

func (m *Metrics) honorChanged(delta int64) {
	if m == nil {
		return
	}
	kind := "win"
	if delta < 0 {
		kind = "loss"
	}
	m.honor.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}
