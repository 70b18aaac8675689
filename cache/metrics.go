// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cache

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

type cacheMetrics struct {
	commits        *metrics.Counter
	commitDuration *metrics.Histogram
	pruned         *metrics.Counter
	touched        *metrics.Counter
	stale          *metrics.Counter
	conflicts      *metrics.Counter
}

// newCacheMetrics creates the metrics of a cache in the given set, or in
// the process-wide registry exported by metrics.WritePrometheus if set is
// nil.
func newCacheMetrics(set *metrics.Set, name string) *cacheMetrics {
	getCounter, getHistogram := metrics.GetOrCreateCounter, metrics.GetOrCreateHistogram
	if set != nil {
		getCounter, getHistogram = set.GetOrCreateCounter, set.GetOrCreateHistogram
	}
	counter := func(metric string) *metrics.Counter {
		return getCounter(fmt.Sprintf("%s{cache=%q}", metric, name))
	}
	return &cacheMetrics{
		commits:        counter("statecache_commits_total"),
		commitDuration: getHistogram(fmt.Sprintf("statecache_commit_duration_seconds{cache=%q}", name)),
		pruned:         counter("statecache_pruned_total"),
		touched:        counter("statecache_touched_total"),
		stale:          counter("statecache_detached_stale_total"),
		conflicts:      counter("statecache_delta_conflicts_total"),
	}
}

func (m *cacheMetrics) observeCommit(start time.Time) {
	m.commits.Inc()
	m.commitDuration.UpdateDuration(start)
}
