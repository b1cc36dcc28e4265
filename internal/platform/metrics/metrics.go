// Package metrics builds the Prometheus registry exposed on the ops server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Version is stamped at build time.
var Version = "dev"

// NewRegistry returns a registry carrying the Go runtime and process
// collectors plus a build info gauge. Domain metrics register on it too.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "pldft_build_info",
		Help: "Build information of the running binary",
	}, []string{"version"}).WithLabelValues(Version).Set(1)
	return reg
}
