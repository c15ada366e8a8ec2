package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/habitly/config"
	"github.com/cppla/habitly/services"
	"github.com/cppla/habitly/utils"
)

const leaderboardCacheKey = "leaderboard"

// AnalyticsController serves charts, the leaderboard, achievements and habit suggestions.
type AnalyticsController struct {
	tracker *services.Tracker
	now     func() time.Time
}

// NewAnalyticsController creates an AnalyticsController.
func NewAnalyticsController(tracker *services.Tracker, now func() time.Time) *AnalyticsController {
	if now == nil {
		now = time.Now
	}
	return &AnalyticsController{tracker: tracker, now: now}
}

// Analytics returns every habit series plus charts grouped by frequency.
func (a *AnalyticsController) Analytics(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	window, ok := intQuery(ctx, "window", config.Get().SeriesWindowDays)
	if !ok {
		return
	}
	report, err := a.tracker.Analytics(ctx.Request.Context(), userID, window, a.now())
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, report)
}

// Leaderboard ranks users by their summed current streaks. Responses are cached in Redis.
func (a *AnalyticsController) Leaderboard(ctx *gin.Context) {
	cfg := config.Get()
	limit, ok := intQuery(ctx, "limit", cfg.LeaderboardSize)
	if !ok {
		return
	}

	key := utils.CacheKey(leaderboardCacheKey, strconv.Itoa(limit))
	var cached []services.LeaderboardEntry
	if utils.CacheGetJSON(ctx.Request.Context(), key, &cached) {
		utils.Success(ctx, gin.H{"items": cached, "cached": true})
		return
	}

	entries, err := a.tracker.Leaderboard(ctx.Request.Context(), limit)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.CacheSetJSON(ctx.Request.Context(), key, entries, time.Duration(cfg.LeaderboardCacheTTLSec)*time.Second)
	utils.Success(ctx, gin.H{"items": entries, "cached": false})
}

// invalidateLeaderboard drops cached leaderboard pages after streaks change.
func invalidateLeaderboard(ctx *gin.Context) {
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CacheKey(leaderboardCacheKey))
}

// Achievements lists the current user's badges.
func (a *AnalyticsController) Achievements(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	earned, err := a.tracker.Achievements(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	have := make(map[string]bool, len(earned))
	for _, e := range earned {
		have[e.Code] = true
	}
	locked := make([]gin.H, 0, len(services.Badges))
	for _, b := range services.Badges {
		if have[b.Code] {
			continue
		}
		locked = append(locked, gin.H{"code": b.Code, "name": b.Name, "description": b.Description, "badge_icon": b.Icon})
	}
	utils.Success(ctx, gin.H{"earned": earned, "locked": locked})
}

// Suggestions lists the habit catalog.
func (a *AnalyticsController) Suggestions(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"items": services.Suggestions})
}

// AddSuggestion creates the catalog habit named :name for the current user.
func (a *AnalyticsController) AddSuggestion(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	name := ctx.Param("name")
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40027, "suggestion name is required")
		return
	}
	habit, err := a.tracker.AddSuggestion(ctx.Request.Context(), userID, name)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	invalidateLeaderboard(ctx)
	utils.Created(ctx, habit)
}
