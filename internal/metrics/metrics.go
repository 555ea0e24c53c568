package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/checkyourself/checkyourself/internal/config"
	"github.com/checkyourself/checkyourself/pkg/types"
)

// Metric names exported per run.
const (
	DaysRemainingName = "checkyourself_certificate_days_remaining"
	ImminentName      = "checkyourself_imminent_certificates"
	SourceErrorsName  = "checkyourself_source_errors"
	LastRunName       = "checkyourself_last_run_timestamp_seconds"
)

// recordLabels are attached to every days-remaining sample so that all
// samples in the family share one label set.
var recordLabels = []string{"account_name", "iam_name", "url"}

// Run is the data exported for one run.
type Run struct {
	Records      []types.CertificateRecord
	Imminent     int
	SourceErrors int
	FinishedAt   time.Time
}

// Families converts run into gauge metric families.
//
// A Pushgateway rejects a push containing two samples with the same label
// set, so records that repeat an earlier record's labels (the same endpoint
// configured twice, say) are exported once; the first record wins.
func Families(run Run) []*dto.MetricFamily {
	days := gaugeFamily(DaysRemainingName, "Whole days until the certificate expires; negative once expired.")
	seen := make(map[string]bool, len(run.Records))
	for _, r := range run.Records {
		labels := map[string]string{
			"common_name": r.CommonName,
			"source":      r.Source.Label(),
		}
		key := []string{r.CommonName, r.Source.Label()}
		for _, l := range recordLabels {
			labels[l] = r.Extra(l)
			key = append(key, labels[l])
		}
		k := strings.Join(key, "\xff")
		if seen[k] {
			continue
		}
		seen[k] = true
		days.Metric = append(days.Metric, gauge(float64(r.DaysRemaining), labels))
	}

	return []*dto.MetricFamily{
		days,
		single(ImminentName, "Certificates at or below the warning threshold.", float64(run.Imminent)),
		single(SourceErrorsName, "Sources or certificates that could not be read.", float64(run.SourceErrors)),
		single(LastRunName, "Unix time the last check finished.", float64(run.FinishedAt.Unix())),
	}
}

// Pusher replaces a job's metric group on a Pushgateway.
type Pusher struct {
	endpoint string
	client   *http.Client
}

// NewPusher returns a Pusher for cfg, or nil when no gateway is configured.
func NewPusher(cfg config.MetricsConfig, timeout time.Duration) *Pusher {
	if cfg.PushgatewayURL == "" {
		return nil
	}
	return &Pusher{
		endpoint: strings.TrimRight(cfg.PushgatewayURL, "/") + "/metrics/job/" + url.PathEscape(cfg.Job),
		client:   &http.Client{Timeout: timeout},
	}
}

// Push encodes families and PUTs them to the gateway.
func (p *Pusher) Push(ctx context.Context, families []*dto.MetricFamily) error {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.endpoint, &buf)
	if err != nil {
		return fmt.Errorf("metrics: build request: %w", err)
	}
	req.Header.Set("Content-Type", string(format))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("metrics: push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("metrics: pushgateway returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func gaugeFamily(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func single(name, help string, v float64) *dto.MetricFamily {
	mf := gaugeFamily(name, help)
	mf.Metric = []*dto.Metric{gauge(v, nil)}
	return mf
}

// gauge builds one sample with labels sorted by name.
func gauge(v float64, labels map[string]string) *dto.Metric {
	names := make([]string, 0, len(labels))
	for n := range labels {
		names = append(names, n)
	}
	sort.Strings(names)

	m := &dto.Metric{Gauge: &dto.Gauge{Value: ptr(v)}}
	for _, n := range names {
		m.Label = append(m.Label, &dto.LabelPair{Name: ptr(n), Value: ptr(labels[n])})
	}
	return m
}

func ptr[T any](v T) *T { return &v }
