/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package apply

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	applyRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentforge_apply_runs_total",
		Help: "Total number of template apply runs started.",
	})

	applyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentforge_apply_outcomes_total",
		Help: "Apply run outcomes by verdict.",
	}, []string{"outcome"})

	filesCopied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentforge_files_copied_total",
		Help: "Total files copied from templates into target projects.",
	})

	conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentforge_conflicts_total",
		Help: "Conflicts encountered during template merges, by severity.",
	}, []string{"severity"})
)
