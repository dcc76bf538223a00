package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce registers collector, or hands back the collector already
// registered under the same description.
func registerOnce(collector prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(collector); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return collector
}
