// Copyright 2025 Worunie Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
)

type allocationMetrics struct {
	operations *prometheus.CounterVec
	retries    prometheus.Counter
}

func newAllocationMetrics(
	promRegistry prometheus.Registerer,
) *allocationMetrics {
	if promRegistry == nil {
		return nil
	}
	m := &allocationMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teambot_allocation_operations_total",
				Help: "allocation operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "teambot_allocation_conflict_retries_total",
				Help: "operations retried after a storage conflict",
			},
		),
	}
	promRegistry.MustRegister(m.operations, m.retries)
	return m
}

// observe records one operation outcome. Expected failures are labeled
// with their failure code; storage errors are labeled "error".
func (m *allocationMetrics) observe(operation string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		if f := AsFailure(err); f != nil {
			result = string(f.Code)
		} else {
			result = "error"
		}
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *allocationMetrics) observeRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}
