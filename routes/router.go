package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/habitly/config"
	"github.com/cppla/habitly/controllers"
	"github.com/cppla/habitly/middleware"
	"github.com/cppla/habitly/services"
	"github.com/cppla/habitly/utils"
)

// SetupRouter wires routes, middlewares, and controllers. now is the clock used for "today" and
// analytics windows; nil means time.Now.
func SetupRouter(db *gorm.DB, now func() time.Time) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, true))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx.Request.Context())
		}
		if err != nil {
			utils.Error(ctx, http.StatusServiceUnavailable, 50300, "database unavailable")
			return
		}
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	tracker := services.NewTracker(db)
	authController := controllers.NewAuthController(db)
	habitController := controllers.NewHabitController(tracker, now)
	completionController := controllers.NewCompletionController(tracker, now)
	analyticsController := controllers.NewAnalyticsController(tracker, now)
	statsController := controllers.NewStatsController(tracker, now)

	authLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	apiLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(authLimiter.Middleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Public endpoints
	api.GET("/stats", statsController.GetStats)
	api.GET("/leaderboard", apiLimiter.Middleware(), analyticsController.Leaderboard)
	api.GET("/suggestions", analyticsController.Suggestions)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), apiLimiter.Middleware())

	protected.POST("/habits", habitController.CreateHabit)
	protected.GET("/habits", habitController.ListHabits)
	protected.GET("/habits/:id", habitController.GetHabit)
	protected.DELETE("/habits/:id", habitController.DeleteHabit)
	protected.GET("/habits/:id/streak", habitController.GetStreak)
	protected.PUT("/habits/:id/completion", habitController.ToggleCompletion)
	protected.GET("/habits/:id/series", habitController.Series)
	protected.POST("/habits/:id/notes", habitController.AddNote)
	protected.GET("/habits/:id/notes", habitController.ListNotes)

	protected.GET("/completions", completionController.OnDate)
	protected.GET("/completions/range", completionController.Range)
	protected.GET("/export", completionController.Export)

	protected.GET("/analytics", analyticsController.Analytics)
	protected.GET("/achievements", analyticsController.Achievements)
	protected.POST("/suggestions/:name", analyticsController.AddSuggestion)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
