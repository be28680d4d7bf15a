package services

import "github.com/prometheus/client_golang/prometheus"

var (
	xpAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "progression_xp_awarded_total",
			Help: "XP granted, by award kind",
		},
		[]string{"kind"},
	)
	levelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "progression_level_ups_total",
			Help: "Number of level ups",
		},
	)
	achievementsUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "achievements_unlocked_total",
			Help: "Achievements unlocked, by achievement id",
		},
		[]string{"achievement"},
	)
	dietDaysCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diet_days_completed_total",
			Help: "Diet program days completed",
		},
	)
	leaderboardRefresh = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leaderboard_refresh_seconds",
			Help:    "Duration of leaderboard snapshot refreshes",
			Buckets: prometheus.DefBuckets,
		},
	)
	pushesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_notifications_total",
			Help: "Push notification dispatch results",
		},
		[]string{"result"},
	)
)

// RegisterMetrics registers the domain metrics. Call this from main.go
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(xpAwarded, levelUps, achievementsUnlocked, dietDaysCompleted, leaderboardRefresh, pushesSent)
}
