// Package metrics exposes the prometheus counters and histograms
// tracking one orchestrator run: bytes transferred per subvolume and
// send/receive duration labelled by strategy, dumped as text at process exit
// rather than served over HTTP (spec's CLI surface has no listener).
package metrics

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Registry bundles this run's metrics behind a private registerer so
// concurrent test runs never collide on the default global registry.
type Registry struct {
	reg *prometheus.Registry

	BytesTransferred *prometheus.CounterVec
	TransferDuration *prometheus.HistogramVec
	Stranded         prometheus.Counter
}

// New constructs a Registry with every metric pre-registered.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		BytesTransferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btrfs_clone_bytes_transferred_total",
			Help: "Bytes streamed through send/receive, by subvolume path.",
		}, []string{"path"}),
		TransferDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "btrfs_clone_transfer_duration_seconds",
			Help:    "Wall-clock duration of one subvolume's send/receive, by strategy.",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		Stranded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "btrfs_clone_stranded_subvolumes_total",
			Help: "Subvolumes the staging commit could not place because their parent never landed.",
		}),
	}

	reg.MustRegister(r.BytesTransferred, r.TransferDuration, r.Stranded)
	return r
}

// Dump renders every registered metric in the Prometheus text
// exposition format, for --verbose runs and the end-of-run report.
func (r *Registry) Dump() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("format metrics: %w", err)
		}
	}
	return buf.String(), nil
}
