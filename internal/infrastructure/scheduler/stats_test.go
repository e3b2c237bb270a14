package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
	"github.com/codepilot/assistant-api/internal/metrics"
)

type totalsRepo struct {
	totals ports.UsageTotals
	err    error
	calls  int
}

func (r *totalsRepo) Apply(context.Context, ports.UsageDelta) error { return nil }
func (r *totalsRepo) Get(context.Context, string) (*domain.UsageStats, error) {
	return nil, domain.ErrNotFound
}
func (r *totalsRepo) List(context.Context, int, int) ([]domain.UsageStats, int64, error) {
	return nil, 0, nil
}
func (r *totalsRepo) Totals(context.Context) (ports.UsageTotals, error) {
	r.calls++
	return r.totals, r.err
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestStatsJob_SetsGauges(t *testing.T) {
	repo := &totalsRepo{totals: ports.UsageTotals{Users: 3, Analyses: 7, ProblemsSolved: 2, ChatMessages: 11}}
	NewStatsJob(repo, zerolog.Nop()).Run(context.Background())

	assert.Equal(t, 3.0, gaugeValue(t, metrics.UsersTotal))
	assert.Equal(t, 7.0, gaugeValue(t, metrics.UsageTotal.WithLabelValues("analyses")))
	assert.Equal(t, 2.0, gaugeValue(t, metrics.UsageTotal.WithLabelValues("problems_solved")))
	assert.Equal(t, 11.0, gaugeValue(t, metrics.UsageTotal.WithLabelValues("chat_messages")))
}

func TestStatsJob_ErrorKeepsPreviousValues(t *testing.T) {
	NewStatsJob(&totalsRepo{totals: ports.UsageTotals{Users: 5}}, zerolog.Nop()).Run(context.Background())
	NewStatsJob(&totalsRepo{err: errors.New("mongo down")}, zerolog.Nop()).Run(context.Background())

	assert.Equal(t, 5.0, gaugeValue(t, metrics.UsersTotal))
}

func TestScheduler_Add(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())

	require.NoError(t, s.Add("stats", "", func(context.Context) {}))
	require.NoError(t, s.Add("stats", "*/10 * * * *", func(context.Context) {}))
	assert.Error(t, s.Add("stats", "every now and then", func(context.Context) {}))
	assert.Len(t, s.cron.Entries(), 2)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := New(context.Background(), zerolog.Nop())
	s.Stop(context.Background())
}
