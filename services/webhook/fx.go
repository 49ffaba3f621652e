package webhook

import (
	"elaview-bookingops/pkg/health"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

type routeParams struct {
	fx.In
	Engine  *gin.Engine
	Service *Service
	Health  health.HealthService
}

func registerRoutes(p routeParams) {
	p.Engine.POST("/webhooks/chat", p.Service.Handle)
	p.Engine.GET("/healthz", p.Health.Liveness)
	p.Engine.GET("/readyz", p.Health.Readiness)
}
