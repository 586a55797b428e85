// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zhtp-network/zhtp/metrics"
)

// Telemetry exposes the Consensus Coordinator's running state as
// Prometheus gauges, registered against the node's shared metrics.Metrics
// registry rather than the global default registerer so multiple nodes in
// one test process don't collide.
type Telemetry struct {
	height     prometheus.Gauge
	mempool    prometheus.Gauge
	treasury   prometheus.Gauge
	validators prometheus.Gauge
}

// NewTelemetry creates and registers the coordinator's gauges against m.
func NewTelemetry(m *metrics.Metrics) (*Telemetry, error) {
	t := &Telemetry{
		height:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "zhtp_consensus_height", Help: "Current block height"}),
		mempool:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "zhtp_consensus_mempool_size", Help: "Pending transactions awaiting inclusion"}),
		treasury:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "zhtp_consensus_treasury_balance", Help: "Treasury balance available for UBI and welfare funding"}),
		validators: prometheus.NewGauge(prometheus.GaugeOpts{Name: "zhtp_consensus_validator_count", Help: "Registered validator count"}),
	}
	for _, c := range []prometheus.Collector{t.height, t.mempool, t.treasury, t.validators} {
		if err := m.Register(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Observe samples st into the registered gauges; Coordinator.GetStatus
// calls it on every invocation once telemetry is attached.
func (t *Telemetry) Observe(st Status) {
	t.height.Set(float64(st.Height))
	t.mempool.Set(float64(st.MempoolSize))
	t.treasury.Set(float64(st.TreasuryBalance))
	t.validators.Set(float64(st.ValidatorCount))
}

// WithTelemetry attaches t to the coordinator; GetStatus calls will also
// feed t.Observe from then on.
func (c *Coordinator) WithTelemetry(t *Telemetry) { c.telemetry = t }
