package walk

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("walk.service",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

// WorkerModule registers the step handler on the asynq mux. Only the
// worker binary mounts it.
var WorkerModule = fx.Module("walk.worker",
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(TaskLifecycleStep, svc.HandleStepTask)
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Run{}); err != nil {
		zap.L().Error("failed to migrate walk schema", zap.Error(err))
		return err
	}
	return nil
}
