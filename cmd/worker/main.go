package main

import (
	"go.uber.org/fx"

	"elaview-bookingops/pkg/chat"
	"elaview-bookingops/pkg/config"
	"elaview-bookingops/pkg/db"
	"elaview-bookingops/pkg/gen"
	"elaview-bookingops/pkg/logger"
	"elaview-bookingops/pkg/redis"
	"elaview-bookingops/pkg/task"
	"elaview-bookingops/services/booking"
	"elaview-bookingops/services/walk"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		gen.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		chat.Module,

		booking.Module,
		walk.Module,
		walk.WorkerModule,
	)

	app.Run()
}
