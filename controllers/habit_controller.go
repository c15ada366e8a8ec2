package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/habitly/config"
	"github.com/cppla/habitly/services"
	"github.com/cppla/habitly/utils"
)

// HabitController serves habit CRUD, completion toggles, series and notes.
type HabitController struct {
	tracker *services.Tracker
	now     func() time.Time
}

// NewHabitController creates a HabitController.
func NewHabitController(tracker *services.Tracker, now func() time.Time) *HabitController {
	if now == nil {
		now = time.Now
	}
	return &HabitController{tracker: tracker, now: now}
}

// CreateHabit adds a habit for the current user.
func (h *HabitController) CreateHabit(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req struct {
		Name      string `json:"name" binding:"required"`
		Frequency string `json:"frequency" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "name and frequency are required")
		return
	}

	habit, err := h.tracker.CreateHabit(ctx.Request.Context(), userID, req.Name, req.Frequency)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	invalidateLeaderboard(ctx)
	utils.Created(ctx, habit)
}

// ListHabits returns the current user's habits.
func (h *HabitController) ListHabits(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habits, err := h.tracker.ListHabits(ctx.Request.Context(), userID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": habits, "total": len(habits)})
}

// GetHabit returns one habit.
func (h *HabitController) GetHabit(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habitID, ok := habitIDParam(ctx)
	if !ok {
		return
	}
	habit, err := h.tracker.GetHabit(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, habit)
}

// GetStreak returns the live streak fields of a habit.
func (h *HabitController) GetStreak(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habitID, ok := habitIDParam(ctx)
	if !ok {
		return
	}
	habit, err := h.tracker.GetHabit(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"habit_id":       habit.ID,
		"frequency":      habit.Frequency,
		"streak":         habit.Streak,
		"longest_streak": habit.LongestStreak,
		"last_completed": formatOptionalDate(habit.LastCompleted),
	})
}

// ToggleCompletion handles PUT /habits/:id/completion.
func (h *HabitController) ToggleCompletion(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habitID, ok := habitIDParam(ctx)
	if !ok {
		return
	}
	var req struct {
		Date        string `json:"date"`
		IsCompleted *bool  `json:"is_completed"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.IsCompleted == nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "date and is_completed are required")
		return
	}
	date, err := services.ParseDate(req.Date)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}

	res, err := h.tracker.ToggleCompletion(ctx.Request.Context(), userID, habitID, date, *req.IsCompleted)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	invalidateLeaderboard(ctx)

	utils.Success(ctx, gin.H{
		"habit_id":         res.HabitID,
		"streak":           res.Streak,
		"longest_streak":   res.LongestStreak,
		"last_completed":   formatOptionalDate(res.LastCompleted),
		"completion":       completionView(res.Record.HabitID, res.Record.CompletionDate, res.Record.IsCompleted),
		"new_achievements": res.NewAchievements,
	})
}

// Series handles GET /habits/:id/series?window=N.
func (h *HabitController) Series(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habitID, ok := habitIDParam(ctx)
	if !ok {
		return
	}
	window, ok := intQuery(ctx, "window", config.Get().SeriesWindowDays)
	if !ok {
		return
	}

	series, err := h.tracker.HabitSeries(ctx.Request.Context(), userID, habitID, window, h.now())
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	chart := series.Chart()
	utils.Success(ctx, gin.H{
		"habit_id":  series.HabitID,
		"name":      series.Name,
		"frequency": series.Frequency,
		"window":    window,
		"labels":    chart.Labels,
		"datasets":  chart.Datasets,
	})
}

// DeleteHabit handles DELETE /habits/:id; ledger rows and notes go with it.
func (h *HabitController) DeleteHabit(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habitID, ok := habitIDParam(ctx)
	if !ok {
		return
	}
	if err := h.tracker.DeleteHabit(ctx.Request.Context(), userID, habitID); err != nil {
		respondServiceError(ctx, err)
		return
	}
	invalidateLeaderboard(ctx)
	utils.Success(ctx, gin.H{"message": "habit deleted", "habit_id": habitID})
}

// AddNote attaches a journal note to a habit.
func (h *HabitController) AddNote(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habitID, ok := habitIDParam(ctx)
	if !ok {
		return
	}
	var req struct {
		Note string `json:"note" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40025, "note is required")
		return
	}
	note, err := h.tracker.AddNote(ctx.Request.Context(), userID, habitID, req.Note)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Created(ctx, note)
}

// ListNotes returns a habit's notes, newest first.
func (h *HabitController) ListNotes(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	habitID, ok := habitIDParam(ctx)
	if !ok {
		return
	}
	notes, err := h.tracker.ListNotes(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": notes})
}

func formatOptionalDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return services.FormatDate(*t)
}

func completionView(habitID uint, date time.Time, done bool) gin.H {
	return gin.H{
		"habit_id":        habitID,
		"completion_date": services.FormatDate(date),
		"is_completed":    done,
	}
}
