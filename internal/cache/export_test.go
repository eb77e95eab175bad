package cache

import "github.com/prometheus/client_golang/prometheus"

func Lookups(result string) prometheus.Counter {
	return lookupsTotal.WithLabelValues(result)
}
