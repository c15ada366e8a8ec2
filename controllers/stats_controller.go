package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/habitly/services"
	"github.com/cppla/habitly/utils"
)

// StatsController provides site-wide counters.
type StatsController struct {
	tracker *services.Tracker
	now     func() time.Time
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(tracker *services.Tracker, now func() time.Time) *StatsController {
	if now == nil {
		now = time.Now
	}
	return &StatsController{tracker: tracker, now: now}
}

// GetStats returns user, habit and completed-today counts.
func (s *StatsController) GetStats(ctx *gin.Context) {
	stats, err := s.tracker.Stats(ctx.Request.Context(), s.now())
	if err != nil {
		// Fallback to zeros instead of failing the whole endpoint
		utils.Sugar.Warnw("stats query failed", "error", err)
	}
	utils.Success(ctx, gin.H{
		"user_count":            stats.Users,
		"habit_count":           stats.Habits,
		"completed_today_count": stats.CompletedToday,
	})
}
