package booking

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("booking.service",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Booking{}); err != nil {
		zap.L().Error("failed to migrate booking schema", zap.Error(err))
		return err
	}
	return nil
}
