package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		activitiesCreatedTotal,
		rosterChangesTotal,
		mediaUploadsTotal,
		mediaRollbackDeletesTotal,
		activityCacheLookupsTotal,
	)
}

var (
	activitiesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activities_created_total",
			Help: "Activities created, labeled by the entitlement consumed.",
		},
		[]string{"entitlement"}, // premium|single|free
	)

	rosterChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_changes_total",
			Help: "Join/leave attempts by operation and result.",
		},
		[]string{"op", "result"}, // op: join|leave|paid_join, result: ok|duplicate|full|not_member|payment_required|error
	)

	mediaUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_uploads_total",
			Help: "Media uploads by result.",
		},
		[]string{"result"},
	)

	mediaRollbackDeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_rollback_deletes_total",
			Help: "Compensating media deletions by result.",
		},
		[]string{"result"},
	)

	activityCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activity_cache_lookups_total",
			Help: "Redis lookups for activity snapshots by result.",
		},
		[]string{"result"}, // hit|miss|corrupt|error
	)
)

func IncActivityCreated(entitlement string) {
	activitiesCreatedTotal.WithLabelValues(norm(entitlement)).Inc()
}

func IncRosterChange(op, result string) {
	rosterChangesTotal.WithLabelValues(norm(op), norm(result)).Inc()
}

func IncMediaUpload(result string) {
	mediaUploadsTotal.WithLabelValues(norm(result)).Inc()
}

func IncMediaRollbackDelete(result string) {
	mediaRollbackDeletesTotal.WithLabelValues(norm(result)).Inc()
}

func IncActivityCacheLookup(result string) {
	activityCacheLookupsTotal.WithLabelValues(norm(result)).Inc()
}
