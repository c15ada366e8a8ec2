package main

import (
	"time"

	"github.com/cppla/habitly/config"
	"github.com/cppla/habitly/models"
	"github.com/cppla/habitly/routes"
	"github.com/cppla/habitly/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	// Parents before children so foreign keys resolve
	db := config.InitDatabase(&models.User{}, &models.Habit{}, &models.HabitCompletion{}, &models.Achievement{}, &models.HabitNote{})

	r := routes.SetupRouter(db, time.Now)

	utils.Sugar.Infof("Starting server on port %s (driver=%s, graceful)", cfg.AppPort, cfg.DBDriver)
	err := utils.GraceServer(":"+cfg.AppPort, r, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
