package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(buildInfo, dbPoolStats, presenceConnections)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "A constant metric with labels for version and commit hash.",
		},
		[]string{"version", "commit"},
	)

	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // total|idle|in_use
	)

	presenceCount atomic.Pointer[func() int]

	presenceConnections = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "presence_connections",
			Help: "Open notification sockets.",
		},
		func() float64 {
			if fn := presenceCount.Load(); fn != nil {
				return float64((*fn)())
			}
			return 0
		},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

// TrackPresence makes the presence gauge read count on every scrape.
func TrackPresence(count func() int) {
	presenceCount.Store(&count)
}
