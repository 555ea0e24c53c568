package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dto "github.com/prometheus/client_model/go"
	"golang.org/x/sync/errgroup"

	"github.com/checkyourself/checkyourself/internal/config"
	"github.com/checkyourself/checkyourself/internal/metrics"
	"github.com/checkyourself/checkyourself/internal/report"
	"github.com/checkyourself/checkyourself/internal/risk"
	"github.com/checkyourself/checkyourself/internal/source"
	"github.com/checkyourself/checkyourself/pkg/types"
)

// Notifier delivers a report to one channel.
type Notifier interface {
	Deliver(ctx context.Context, channel string, r report.Report) error
}

// MetricsPusher exports metric families at the end of a run.
type MetricsPusher interface {
	Push(ctx context.Context, families []*dto.MetricFamily) error
}

// Summary describes what one run did.
type Summary struct {
	Records  []types.CertificateRecord
	Imminent []types.CertificateRecord
	Report   report.Report

	// SourceErrors holds one entry per source that failed fully or partially.
	SourceErrors   []error
	DeliveryErrors []error
	PushError      error
}

// Runner performs one check-and-notify pass over every configured source.
type Runner struct {
	sources     []source.Source
	builder     report.Builder
	channels    []string
	notifier    Notifier
	pusher      MetricsPusher
	concurrency int
	now         func() time.Time
}

// New creates a Runner. pusher may be nil to skip the metrics export.
func New(cfg *config.Config, sources []source.Source, notifier Notifier, pusher MetricsPusher) *Runner {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = config.DefaultConcurrency
	}
	return &Runner{
		sources:     sources,
		builder:     report.Builder{Thresholds: cfg.Thresholds()},
		channels:    cfg.SlackChannels,
		notifier:    notifier,
		pusher:      pusher,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run collects every record, reports the imminent ones to every channel and
// pushes metrics. Source, delivery and push failures are logged and recorded
// in the Summary; none of them stops the run.
func (r *Runner) Run(ctx context.Context) Summary {
	all, srcErrs := r.collect(ctx)

	th := r.builder.Thresholds
	imminent := risk.Imminent(all, th.Warning)
	rep := r.builder.Build(imminent, all)

	slog.Info("run: certificates checked",
		"sources", len(r.sources),
		"records", len(all),
		"imminent", len(imminent),
		"source_errors", len(srcErrs),
		"warning_threshold", th.Warning,
	)

	sum := Summary{Records: all, Imminent: imminent, Report: rep, SourceErrors: srcErrs}

	// The same report goes to every channel.
	for _, ch := range r.channels {
		if err := r.notifier.Deliver(ctx, ch, rep); err != nil {
			slog.Error("run: delivery failed", "channel", ch, "err", err)
			sum.DeliveryErrors = append(sum.DeliveryErrors, err)
			continue
		}
		slog.Info("run: report delivered", "channel", ch, "entries", len(rep.Entries))
	}

	if r.pusher != nil {
		fams := metrics.Families(metrics.Run{
			Records:      all,
			Imminent:     len(imminent),
			SourceErrors: len(srcErrs),
			FinishedAt:   r.now(),
		})
		if err := r.pusher.Push(ctx, fams); err != nil {
			slog.Error("run: metrics push failed", "err", err)
			sum.PushError = err
		}
	}

	return sum
}

// collect fetches every source with at most r.concurrency in flight.
// Records are concatenated in source order regardless of completion order,
// and a failing source never cancels the others.
func (r *Runner) collect(ctx context.Context) ([]types.CertificateRecord, []error) {
	results := make([][]types.CertificateRecord, len(r.sources))
	errs := make([]error, len(r.sources))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, src := range r.sources {
		i, src := i, src
		g.Go(func() error {
			results[i], errs[i] = src.FetchAll(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var (
		all     []types.CertificateRecord
		srcErrs []error
	)
	for i, src := range r.sources {
		all = append(all, results[i]...)
		if errs[i] == nil {
			continue
		}
		srcErrs = append(srcErrs, errs[i])
		if len(results[i]) == 0 {
			slog.Error("run: source failed",
				"source", src.Name(), "kind", errorKind(errs[i]), "err", errs[i])
		} else {
			slog.Warn("run: source partially failed",
				"source", src.Name(), "records", len(results[i]), "kind", errorKind(errs[i]), "err", errs[i])
		}
	}
	return all, srcErrs
}

// errorKind names the taxonomy class of err for logging.
func errorKind(err error) string {
	switch {
	case errors.Is(err, source.ErrAuthorization):
		return "authorization"
	case errors.Is(err, source.ErrSourceUnavailable):
		return "unavailable"
	case errors.Is(err, source.ErrParse):
		return "parse"
	default:
		return "unknown"
	}
}
