package services

import "github.com/prometheus/client_golang/prometheus"

var (
	xpAwardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "activity_point",
			Subsystem: "gamification",
			Name:      "xp_awarded_total",
			Help:      "XP awarded, by action.",
		},
		[]string{"action"},
	)
	levelUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "activity_point",
			Subsystem: "gamification",
			Name:      "level_ups_total",
			Help:      "Accruals that raised a user's level.",
		},
	)
	achievementsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "activity_point",
			Subsystem: "gamification",
			Name:      "achievements_granted_total",
			Help:      "Achievements newly granted, by name.",
		},
		[]string{"achievement"},
	)
	grantFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "activity_point",
			Subsystem: "gamification",
			Name:      "grant_failures_total",
			Help:      "Failed achievement grants, by reason.",
		},
		[]string{"reason"},
	)
	pendingGrantsDead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "activity_point",
			Subsystem: "gamification",
			Name:      "pending_grants_dead_total",
			Help:      "Queued grants abandoned after the retry limit.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		xpAwardedTotal,
		levelUpsTotal,
		achievementsGrantedTotal,
		grantFailuresTotal,
		pendingGrantsDead,
	)
}
