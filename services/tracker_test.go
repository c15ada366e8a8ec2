package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/cppla/habitly/config"
	"github.com/cppla/habitly/models"
)

func newTestTracker(t *testing.T) (*Tracker, *gorm.DB) {
	t.Helper()

	cfg := config.AppConfig{
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "habitly-test.db"),
		LogLevel:   "silent",
	}
	database, err := config.OpenDatabase(cfg, &models.User{}, &models.Habit{}, &models.HabitCompletion{}, &models.Achievement{}, &models.HabitNote{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("open sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return NewTracker(database), database
}

func createTestUser(t *testing.T, database *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{Username: username, PasswordHash: "test-hash"}
	if err := database.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createTestHabit(t *testing.T, tracker *Tracker, userID uint, name, freq string) models.Habit {
	t.Helper()
	habit, err := tracker.CreateHabit(context.Background(), userID, name, freq)
	if err != nil {
		t.Fatalf("create habit: %v", err)
	}
	return habit
}

func TestLedgerUpsertRoundTrip(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	user := createTestUser(t, database, "ledger")
	habit := createTestHabit(t, tracker, user.ID, "Read", "daily")
	ledger := tracker.Ledger()
	ctx := context.Background()
	day := mustDate(t, "2024-01-01")

	first, err := ledger.Upsert(ctx, habit.ID, user.ID, day, true)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, ok, err := ledger.Get(ctx, habit.ID, user.ID, day)
	if err != nil || !ok || !got.IsCompleted {
		t.Fatalf("get after upsert = %+v, %v, %v", got, ok, err)
	}

	second, err := ledger.Upsert(ctx, habit.ID, user.ID, day, false)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID || second.IsCompleted {
		t.Fatalf("second upsert = %+v, want overwrite of row %d", second, first.ID)
	}

	var count int64
	database.Model(&models.HabitCompletion{}).Where("habit_id = ?", habit.ID).Count(&count)
	if count != 1 {
		t.Fatalf("rows for key = %d, want 1", count)
	}

	if _, ok, err := ledger.Get(ctx, habit.ID, user.ID, mustDate(t, "2024-01-02")); err != nil || ok {
		t.Fatalf("missing key reported ok=%v err=%v", ok, err)
	}
}

func TestLedgerRangeAndOnDate(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	user := createTestUser(t, database, "ranger")
	read := createTestHabit(t, tracker, user.ID, "Read", "daily")
	walk := createTestHabit(t, tracker, user.ID, "Walk", "daily")
	ledger := tracker.Ledger()
	ctx := context.Background()

	for _, d := range []string{"2024-01-03", "2024-01-01", "2024-01-05"} {
		if _, err := ledger.Upsert(ctx, read.ID, user.ID, mustDate(t, d), true); err != nil {
			t.Fatalf("upsert %s: %v", d, err)
		}
	}

	rows, err := ledger.Range(ctx, user.ID, mustDate(t, "2024-01-01"), mustDate(t, "2024-01-03"))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(rows) != 2 || FormatDate(rows[0].CompletionDate) != "2024-01-01" || FormatDate(rows[1].CompletionDate) != "2024-01-03" {
		t.Fatalf("range rows = %+v", rows)
	}

	if _, err := ledger.Range(ctx, user.ID, mustDate(t, "2024-01-05"), mustDate(t, "2024-01-01")); !errors.Is(err, ErrValidation) {
		t.Fatalf("inverted range: got %v, want ErrValidation", err)
	}

	statuses, err := ledger.OnDate(ctx, user.ID, mustDate(t, "2024-01-03"))
	if err != nil {
		t.Fatalf("on date: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("statuses = %+v", statuses)
	}
	if statuses[0].HabitID != read.ID || !statuses[0].IsCompleted {
		t.Fatalf("read status = %+v", statuses[0])
	}
	if statuses[1].HabitID != walk.ID || statuses[1].IsCompleted {
		t.Fatalf("walk status = %+v", statuses[1])
	}
}

func TestToggleCompletionUpdatesStreak(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	user := createTestUser(t, database, "streaker")
	habit := createTestHabit(t, tracker, user.ID, "Stretch", "daily")
	ctx := context.Background()

	steps := []struct {
		date       string
		completed  bool
		wantStreak int
	}{
		{"2024-01-01", true, 1},
		{"2024-01-02", true, 2},
		{"2024-01-02", false, 2},
		{"2024-01-04", true, 1},
		{"2023-12-25", true, 1},
	}
	for _, s := range steps {
		res, err := tracker.ToggleCompletion(ctx, user.ID, habit.ID, mustDate(t, s.date), s.completed)
		if err != nil {
			t.Fatalf("toggle %s: %v", s.date, err)
		}
		if res.Streak != s.wantStreak {
			t.Fatalf("toggle %s: streak = %d, want %d", s.date, res.Streak, s.wantStreak)
		}
	}

	stored, err := tracker.GetHabit(ctx, user.ID, habit.ID)
	if err != nil {
		t.Fatalf("get habit: %v", err)
	}
	if stored.Streak != 1 || stored.LongestStreak != 2 {
		t.Fatalf("stored habit = %+v", stored)
	}
	if stored.LastCompleted == nil || FormatDate(*stored.LastCompleted) != "2024-01-04" {
		t.Fatalf("last completed = %v", stored.LastCompleted)
	}

	// The backdated completion is kept in the ledger even though it left the streak alone.
	if _, ok, _ := tracker.Ledger().Get(ctx, habit.ID, user.ID, mustDate(t, "2023-12-25")); !ok {
		t.Fatal("backdated completion not recorded")
	}
}

func TestToggleCompletionAwardsBadgesOnce(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	user := createTestUser(t, database, "badger")
	habit := createTestHabit(t, tracker, user.ID, "Journal", "daily")
	ctx := context.Background()

	res, err := tracker.ToggleCompletion(ctx, user.ID, habit.ID, mustDate(t, "2024-06-01"), true)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if len(res.NewAchievements) != 1 || res.NewAchievements[0].Code != "first-step" {
		t.Fatalf("new achievements = %+v", res.NewAchievements)
	}

	for _, d := range []string{"2024-06-02", "2024-06-03"} {
		res, err = tracker.ToggleCompletion(ctx, user.ID, habit.ID, mustDate(t, d), true)
		if err != nil {
			t.Fatalf("toggle %s: %v", d, err)
		}
	}
	if len(res.NewAchievements) != 1 || res.NewAchievements[0].Code != "three-peat" {
		t.Fatalf("day 3 achievements = %+v", res.NewAchievements)
	}

	all, err := tracker.Achievements(ctx, user.ID)
	if err != nil {
		t.Fatalf("achievements: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("achievements = %+v", all)
	}
}

func TestToggleCompletionErrors(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	owner := createTestUser(t, database, "owner")
	other := createTestUser(t, database, "other")
	habit := createTestHabit(t, tracker, owner.ID, "Swim", "weekly")
	ctx := context.Background()

	if _, err := tracker.ToggleCompletion(ctx, other.ID, habit.ID, mustDate(t, "2024-01-01"), true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign habit: got %v, want ErrNotFound", err)
	}

	if err := database.Model(&models.Habit{}).Where("id = ?", habit.ID).Update("frequency", "hourly").Error; err != nil {
		t.Fatalf("corrupt frequency: %v", err)
	}
	if _, err := tracker.ToggleCompletion(ctx, owner.ID, habit.ID, mustDate(t, "2024-01-01"), true); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("bad frequency: got %v, want ErrConfiguration", err)
	}
	if _, ok, _ := tracker.Ledger().Get(ctx, habit.ID, owner.ID, mustDate(t, "2024-01-01")); ok {
		t.Fatal("ledger row survived a rolled back toggle")
	}
}

func TestConcurrentTogglesKeepOneRow(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	user := createTestUser(t, database, "racer")
	habit := createTestHabit(t, tracker, user.ID, "Push-ups", "daily")
	ctx := context.Background()
	day := mustDate(t, "2024-04-01")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(done bool) {
			defer wg.Done()
			if _, err := tracker.ToggleCompletion(ctx, user.ID, habit.ID, day, done); err != nil {
				errs <- err
			}
		}(i%2 == 0)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("toggle: %v", err)
	}

	var count int64
	database.Model(&models.HabitCompletion{}).Where("habit_id = ?", habit.ID).Count(&count)
	if count != 1 {
		t.Fatalf("rows for key = %d, want 1", count)
	}
}

func TestDeleteHabitCascades(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	user := createTestUser(t, database, "deleter")
	doomed := createTestHabit(t, tracker, user.ID, "Doomed", "daily")
	kept := createTestHabit(t, tracker, user.ID, "Kept", "daily")
	ctx := context.Background()

	for _, h := range []models.Habit{doomed, kept} {
		if _, err := tracker.ToggleCompletion(ctx, user.ID, h.ID, mustDate(t, "2024-01-01"), true); err != nil {
			t.Fatalf("toggle: %v", err)
		}
		if _, err := tracker.AddNote(ctx, user.ID, h.ID, "felt good"); err != nil {
			t.Fatalf("add note: %v", err)
		}
	}

	if err := tracker.DeleteHabit(ctx, user.ID, doomed.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := tracker.GetHabit(ctx, user.ID, doomed.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted habit: got %v, want ErrNotFound", err)
	}

	var completions, notes int64
	database.Model(&models.HabitCompletion{}).Where("habit_id = ?", doomed.ID).Count(&completions)
	database.Model(&models.HabitNote{}).Where("habit_id = ?", doomed.ID).Count(&notes)
	if completions != 0 || notes != 0 {
		t.Fatalf("orphans left: %d completions, %d notes", completions, notes)
	}

	database.Model(&models.HabitCompletion{}).Where("habit_id = ?", kept.ID).Count(&completions)
	if completions != 1 {
		t.Fatalf("other habit lost rows: %d", completions)
	}

	if err := tracker.DeleteHabit(ctx, user.ID, doomed.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestCreateHabitValidation(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	user := createTestUser(t, database, "creator")
	ctx := context.Background()

	tests := []struct {
		name, habit, freq string
		want              error
	}{
		{"empty name", "   ", "daily", ErrValidation},
		{"markup only", "<script>alert(1)</script>", "daily", ErrValidation},
		{"too long", strings.Repeat("x", 129), "daily", ErrValidation},
		{"bad frequency", "Yoga", "yearly", ErrConfiguration},
	}
	for _, tt := range tests {
		if _, err := tracker.CreateHabit(ctx, user.ID, tt.habit, tt.freq); !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}

	habit, err := tracker.CreateHabit(ctx, user.ID, "  <b>Yoga</b> ", "Weekly")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if habit.Name != "Yoga" || habit.Frequency != "weekly" || habit.Streak != 0 {
		t.Fatalf("habit = %+v", habit)
	}
}

func TestHabitSeriesAndAnalytics(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	user := createTestUser(t, database, "analyst")
	daily := createTestHabit(t, tracker, user.ID, "Read", "daily")
	createTestHabit(t, tracker, user.ID, "Budget", "monthly")
	ctx := context.Background()

	for _, d := range []string{"2024-01-08", "2024-01-09"} {
		if _, err := tracker.ToggleCompletion(ctx, user.ID, daily.ID, mustDate(t, d), true); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	now := mustDate(t, "2024-01-10")

	series, err := tracker.HabitSeries(ctx, user.ID, daily.ID, 3, now)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if len(series.Labels) != 3 || series.Streak[1] != 2 || series.Completion[2] != 0 {
		t.Fatalf("series = %+v", series)
	}

	report, err := tracker.Analytics(ctx, user.ID, 30, now)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(report.Habits) != 2 || len(report.Charts) != 2 {
		t.Fatalf("report = %+v", report)
	}
	if report.Start != "2023-12-12" || report.End != "2024-01-10" {
		t.Fatalf("window = %s..%s", report.Start, report.End)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	ctx := context.Background()
	alice := createTestUser(t, database, "alice")
	bob := createTestUser(t, database, "bob")
	createTestUser(t, database, "idle")

	a := createTestHabit(t, tracker, alice.ID, "Read", "daily")
	b := createTestHabit(t, tracker, bob.ID, "Read", "daily")
	for _, d := range []string{"2024-01-01", "2024-01-02"} {
		if _, err := tracker.ToggleCompletion(ctx, bob.ID, b.ID, mustDate(t, d), true); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}
	if _, err := tracker.ToggleCompletion(ctx, alice.ID, a.ID, mustDate(t, "2024-01-01"), true); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	board, err := tracker.Leaderboard(ctx, 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("board = %+v", board)
	}
	if board[0].Username != "bob" || board[0].Rank != 1 || board[0].TotalStreak != 2 {
		t.Fatalf("first = %+v", board[0])
	}
	if board[1].Username != "alice" || board[1].Rank != 2 {
		t.Fatalf("second = %+v", board[1])
	}

	if _, err := tracker.Leaderboard(ctx, MaxLeaderboardSize+1); !errors.Is(err, ErrValidation) {
		t.Fatalf("oversized limit: got %v", err)
	}
}

func TestNotesSuggestionsAndExport(t *testing.T) {
	t.Parallel()

	tracker, database := newTestTracker(t)
	user := createTestUser(t, database, "writer")
	ctx := context.Background()

	habit, err := tracker.AddSuggestion(ctx, user.ID, "meditate")
	if err != nil {
		t.Fatalf("add suggestion: %v", err)
	}
	if habit.Name != "Meditate" || habit.Frequency != "daily" {
		t.Fatalf("suggested habit = %+v", habit)
	}
	if _, err := tracker.AddSuggestion(ctx, user.ID, "juggle chainsaws"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown suggestion: got %v", err)
	}

	note, err := tracker.AddNote(ctx, user.ID, habit.ID, `calm <script>x()</script><b>today</b>`)
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if strings.Contains(note.Note, "script") {
		t.Fatalf("note not sanitized: %q", note.Note)
	}
	notes, err := tracker.ListNotes(ctx, user.ID, habit.ID)
	if err != nil || len(notes) != 1 {
		t.Fatalf("list notes = %+v, %v", notes, err)
	}

	if _, err := tracker.ToggleCompletion(ctx, user.ID, habit.ID, mustDate(t, "2024-02-01"), true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	var buf bytes.Buffer
	if err := tracker.ExportCSV(ctx, user.ID, mustDate(t, "2024-01-01"), mustDate(t, "2024-12-31"), &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	want := "date,habit_id,habit,frequency,completed\n2024-02-01,1,Meditate,daily,true\n"
	if buf.String() != want {
		t.Fatalf("csv = %q, want %q", buf.String(), want)
	}
}
