/*
metrics.go - Prometheus counters for the planning engine

PURPOSE:
  Counts what the engine decides: validations run and the issues they
  raise, conflicts found, resolutions applied, transfer simulations.
  Exposed on /metrics by the api package.

USAGE:
    metrics.Register()          // once, at startup
    metrics.IncIssue(code, sev) // from handlers

SEE ALSO:
  - api/server.go: /metrics route
*/
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "planning_engine"

var (
	once sync.Once

	validations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Count of supervision validations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	issues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_issues_total",
			Help:      "Count of supervision issues by code and severity.",
		},
		[]string{"code", "severity"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_conflicts_detected_total",
			Help:      "Count of rule conflicts reported by severity.",
		},
		[]string{"severity"},
	)

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_conflicts_resolved_total",
			Help:      "Count of conflict resolutions by strategy.",
		},
		[]string{"strategy"},
	)

	simulations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_simulations_total",
			Help:      "Count of quota simulations by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_transfers_total",
			Help:      "Count of quota transfer decisions by status.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(validations, issues, conflicts, resolutions, simulations, transfers)
	})
}

// Outcome labels a boolean verdict.
func Outcome(ok bool) string {
	if ok {
		return "valid"
	}
	return "invalid"
}

func IncValidation(kind string, valid bool) {
	validations.WithLabelValues(kind, Outcome(valid)).Inc()
}

func IncIssue(code, severity string) {
	issues.WithLabelValues(code, severity).Inc()
}

func IncConflict(severity string) {
	conflicts.WithLabelValues(severity).Inc()
}

func IncResolution(strategy string) {
	resolutions.WithLabelValues(strategy).Inc()
}

func IncSimulation(kind string, valid bool) {
	simulations.WithLabelValues(kind, Outcome(valid)).Inc()
}

func IncTransfer(status string) {
	transfers.WithLabelValues(status).Inc()
}
