package telemetry

import "github.com/prometheus/client_golang/prometheus"

func HTTPRequests(method, endpoint, status string) prometheus.Counter {
	return httpRequestsTotal.WithLabelValues(method, endpoint, status)
}

func GeneratorCalls(op, status string) prometheus.Counter {
	return generatorCallsTotal.WithLabelValues(op, status)
}
