package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/checkyourself/checkyourself/internal/config"
	"github.com/checkyourself/checkyourself/internal/metrics"
	"github.com/checkyourself/checkyourself/internal/report"
	"github.com/checkyourself/checkyourself/internal/risk"
	"github.com/checkyourself/checkyourself/internal/source"
	"github.com/checkyourself/checkyourself/pkg/types"
)

// fakeSource returns fixed records and error after an optional delay.
type fakeSource struct {
	name    string
	records []types.CertificateRecord
	err     error
	delay   time.Duration
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchAll(ctx context.Context) ([]types.CertificateRecord, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.records, f.err
}

type delivery struct {
	channel string
	report  report.Report
}

// fakeNotifier records deliveries and fails for channels listed in fail.
type fakeNotifier struct {
	mu   sync.Mutex
	got  []delivery
	fail map[string]bool
}

func (f *fakeNotifier) Deliver(_ context.Context, channel string, r report.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[channel] {
		return fmt.Errorf("channel %s: webhook returned HTTP 404", channel)
	}
	f.got = append(f.got, delivery{channel: channel, report: r})
	return nil
}

type fakePusher struct {
	families []*dto.MetricFamily
	err      error
}

func (f *fakePusher) Push(_ context.Context, families []*dto.MetricFamily) error {
	f.families = families
	return f.err
}

func rec(name string, days int) types.CertificateRecord {
	return types.CertificateRecord{
		CommonName:    name,
		DaysRemaining: days,
		Source:        types.Remote,
		ExtraInfo:     []types.Field{{Label: "url", Value: "https://" + name}},
	}
}

func testConfig(channels ...string) *config.Config {
	warning, medium, low := 30, 60, 20
	return &config.Config{
		SlackChannels:                 channels,
		DaysRemainingWarningThreshold: &warning,
		MediumThreshold:               &medium,
		LowThreshold:                  &low,
		Concurrency:                   4,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	sources := []source.Source{
		&fakeSource{name: "remote:a", records: []types.CertificateRecord{rec("a", 10)}},
		&fakeSource{name: "remote:b", records: []types.CertificateRecord{rec("b", 90)}},
		&fakeSource{name: "remote:c", records: []types.CertificateRecord{rec("c", 25)}},
	}
	n := &fakeNotifier{}

	sum := New(testConfig("#ops"), sources, n, nil).Run(context.Background())

	assert.Len(t, sum.Records, 3)
	require.Len(t, sum.Imminent, 2)
	assert.Equal(t, "a", sum.Imminent[0].CommonName)
	assert.Equal(t, "c", sum.Imminent[1].CommonName)
	assert.Empty(t, sum.SourceErrors)

	require.Len(t, n.got, 1)
	entries := n.got[0].report.Entries
	require.Len(t, entries, 2)
	assert.Equal(t, risk.Danger, entries[0].Severity)
	assert.Equal(t, "a", entries[0].Record.CommonName)
	assert.Equal(t, risk.Warning, entries[1].Severity)
	assert.Equal(t, "c", entries[1].Record.CommonName)
}

func TestRun_SourceFailureIsolated(t *testing.T) {
	sources := []source.Source{
		&fakeSource{name: "aws:prod", err: fmt.Errorf("aws account %q: %w", "prod", source.ErrAuthorization)},
		&fakeSource{name: "remote:down", err: fmt.Errorf("remote %q: %w", "down", source.ErrSourceUnavailable)},
		&fakeSource{name: "remote:up", records: []types.CertificateRecord{rec("up", 3)}},
	}
	n := &fakeNotifier{}

	sum := New(testConfig("#ops"), sources, n, nil).Run(context.Background())

	require.Len(t, sum.SourceErrors, 2)
	assert.ErrorIs(t, sum.SourceErrors[0], source.ErrAuthorization)
	assert.ErrorIs(t, sum.SourceErrors[1], source.ErrSourceUnavailable)
	require.Len(t, sum.Records, 1)
	require.Len(t, n.got, 1)
	require.Len(t, n.got[0].report.Entries, 1)
	assert.Equal(t, "up", n.got[0].report.Entries[0].Record.CommonName)
}

func TestRun_PartialSourceKeepsRecords(t *testing.T) {
	partial := &fakeSource{
		name:    "aws:prod",
		records: []types.CertificateRecord{rec("kept", 12)},
		err:     errors.Join(fmt.Errorf("certificate %q: %w", "broken", source.ErrParse)),
	}
	sum := New(testConfig("#ops"), []source.Source{partial}, &fakeNotifier{}, nil).Run(context.Background())

	require.Len(t, sum.SourceErrors, 1)
	assert.ErrorIs(t, sum.SourceErrors[0], source.ErrParse)
	require.Len(t, sum.Records, 1)
	assert.Equal(t, "kept", sum.Records[0].CommonName)
}

func TestRun_OrderIndependentOfCompletion(t *testing.T) {
	// The first source finishes last; records still follow source order.
	sources := []source.Source{
		&fakeSource{name: "slow", records: []types.CertificateRecord{rec("slow", 5)}, delay: 50 * time.Millisecond},
		&fakeSource{name: "fast", records: []types.CertificateRecord{rec("fast", 5)}},
	}
	sum := New(testConfig("#ops"), sources, &fakeNotifier{}, nil).Run(context.Background())

	require.Len(t, sum.Records, 2)
	assert.Equal(t, "slow", sum.Records[0].CommonName)
	assert.Equal(t, "fast", sum.Records[1].CommonName)
	assert.Equal(t, "slow", sum.Report.Entries[0].Record.CommonName)
}

func TestRun_SameReportEveryChannel(t *testing.T) {
	sources := []source.Source{
		&fakeSource{name: "remote", records: []types.CertificateRecord{rec("a", 1), rec("b", 29), rec("c", 45)}},
	}
	n := &fakeNotifier{fail: map[string]bool{"#broken": true}}

	sum := New(testConfig("#ops", "#broken", "#security"), sources, n, nil).Run(context.Background())

	require.Len(t, sum.DeliveryErrors, 1)
	require.Len(t, n.got, 2)
	assert.Equal(t, "#ops", n.got[0].channel)
	assert.Equal(t, "#security", n.got[1].channel)
	assert.Equal(t, n.got[0].report, n.got[1].report)
}

func TestRun_AllClear(t *testing.T) {
	sources := []source.Source{
		&fakeSource{name: "remote", records: []types.CertificateRecord{rec("a", 40), rec("b", 5+30)}},
	}
	n := &fakeNotifier{}

	sum := New(testConfig("#ops"), sources, n, nil).Run(context.Background())

	assert.Empty(t, sum.Imminent)
	require.Len(t, n.got, 1)
	assert.True(t, n.got[0].report.AllClear())
	assert.Contains(t, n.got[0].report.Summary, "Only 35 days")
}

func TestRun_PushesMetrics(t *testing.T) {
	sources := []source.Source{
		&fakeSource{name: "remote", records: []types.CertificateRecord{rec("a", 10), rec("b", 90)}},
		&fakeSource{name: "down", err: source.ErrSourceUnavailable},
	}
	p := &fakePusher{err: errors.New("pushgateway down")}

	sum := New(testConfig("#ops"), sources, &fakeNotifier{}, p).Run(context.Background())

	assert.Error(t, sum.PushError)
	require.Len(t, p.families, 4)
	byName := map[string]*dto.MetricFamily{}
	for _, mf := range p.families {
		byName[mf.GetName()] = mf
	}
	assert.Len(t, byName[metrics.DaysRemainingName].GetMetric(), 2)
	assert.Equal(t, 1.0, byName[metrics.ImminentName].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 1.0, byName[metrics.SourceErrorsName].GetMetric()[0].GetGauge().GetValue())
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "authorization", errorKind(fmt.Errorf("x: %w", source.ErrAuthorization)))
	assert.Equal(t, "unavailable", errorKind(source.ErrSourceUnavailable))
	assert.Equal(t, "parse", errorKind(errors.Join(source.ErrParse)))
	assert.Equal(t, "unknown", errorKind(errors.New("boom")))
}
