package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/habitly/services"
	"github.com/cppla/habitly/utils"
)

// CompletionController serves calendar reads and the CSV export of the ledger.
type CompletionController struct {
	tracker *services.Tracker
	now     func() time.Time
}

// NewCompletionController creates a CompletionController.
func NewCompletionController(tracker *services.Tracker, now func() time.Time) *CompletionController {
	if now == nil {
		now = time.Now
	}
	return &CompletionController{tracker: tracker, now: now}
}

// OnDate lists every habit with its status on ?date (today when omitted).
func (c *CompletionController) OnDate(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	date := services.CivilDate(c.now())
	if raw := ctx.Query("date"); raw != "" {
		parsed, err := services.ParseDate(raw)
		if err != nil {
			respondServiceError(ctx, err)
			return
		}
		date = parsed
	}

	statuses, err := c.tracker.OnDate(ctx.Request.Context(), userID, date)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"date": services.FormatDate(date), "habits": statuses})
}

// Range lists ledger rows between ?start_date and ?end_date inclusive.
func (c *CompletionController) Range(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	start, end, ok := dateRange(ctx)
	if !ok {
		return
	}

	rows, err := c.tracker.Range(ctx.Request.Context(), userID, start, end)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	items := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		items = append(items, completionView(r.HabitID, r.CompletionDate, r.IsCompleted))
	}
	utils.Success(ctx, gin.H{
		"start_date": services.FormatDate(start),
		"end_date":   services.FormatDate(end),
		"items":      items,
	})
}

// Export streams ledger rows between ?start_date and ?end_date as CSV.
func (c *CompletionController) Export(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	start, end, ok := dateRange(ctx)
	if !ok {
		return
	}

	// Validate before the CSV header is written; afterwards only the body can carry errors.
	if _, err := c.tracker.Range(ctx.Request.Context(), userID, start, end); err != nil {
		respondServiceError(ctx, err)
		return
	}

	filename := fmt.Sprintf("habits_%s_%s.csv", services.FormatDate(start), services.FormatDate(end))
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	ctx.Status(http.StatusOK)
	if err := c.tracker.ExportCSV(ctx.Request.Context(), userID, start, end, ctx.Writer); err != nil {
		utils.Sugar.Errorw("csv export failed", "user_id", userID, "error", err)
	}
}

func dateRange(ctx *gin.Context) (time.Time, time.Time, bool) {
	start, err := services.ParseDate(ctx.Query("start_date"))
	if err != nil {
		respondServiceError(ctx, err)
		return time.Time{}, time.Time{}, false
	}
	end, err := services.ParseDate(ctx.Query("end_date"))
	if err != nil {
		respondServiceError(ctx, err)
		return time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		utils.Error(ctx, http.StatusBadRequest, 40026, "end_date is before start_date")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
