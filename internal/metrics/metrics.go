// Package metrics exposes Prometheus instrumentation for the recommendation,
// trending and achievement components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SimilarityDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookrec_similarity_duration_seconds",
			Help:    "Duration of similar-user computations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CandidatesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrec_similarity_candidates_scanned_total",
			Help: "Total number of candidate users scanned by the similarity engine",
		},
	)

	CandidateReadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrec_similarity_candidate_read_errors_total",
			Help: "Candidate collections that could not be read and were skipped",
		},
	)

	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_recommendations_served_total",
			Help: "Total number of recommendations returned, by kind",
		},
		[]string{"kind"}, // "collaborative", "trending_similar"
	)

	PopularityUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_popularity_updates_total",
			Help: "Popularity record updates by outcome",
		},
		[]string{"outcome"}, // "created", "updated", "error"
	)

	AchievementsAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrec_achievements_awarded_total",
			Help: "Achievements transitioned to completed",
		},
		[]string{"achievement_id"},
	)

	AchievementErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrec_achievement_evaluation_errors_total",
			Help: "Achievement evaluations that failed and were skipped",
		},
	)
)
