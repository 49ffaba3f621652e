package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status    string       `json:"status"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	Deps      []Dependency `json:"deps,omitempty"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db    *gorm.DB
	redis *redis.Client
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:    p.DB,
		redis: p.Redis,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:    "ok",
		Message:   "booking ops service is running",
		Timestamp: time.Now().UTC(),
	})
}

func (h *health) Readiness(c *gin.Context) {
	this := &Health{
		Status:    "ok",
		Message:   "OK",
		Timestamp: time.Now().UTC(),
	}

	var (
		g, ctx = errgroup.WithContext(c.Request.Context())
		dbDep  *Dependency
		rdbDep *Dependency
	)

	if h.db != nil {
		g.Go(func() error {
			dep := Dependency{Name: h.db.Name(), Status: "ok", Message: "OK"}
			sql, err := h.db.DB()
			if err == nil {
				err = sql.PingContext(ctx)
			}
			if err != nil {
				dep.Status = "unhealthy"
				dep.Message = err.Error()
			}
			dbDep = &dep
			return nil
		})
	}

	if h.redis != nil {
		g.Go(func() error {
			dep := Dependency{Name: "redis", Status: "ok", Message: "OK"}
			if err := h.redis.Ping(ctx).Err(); err != nil {
				dep.Status = "unhealthy"
				dep.Message = err.Error()
			}
			rdbDep = &dep
			return nil
		})
	}

	_ = g.Wait()

	for _, dep := range []*Dependency{dbDep, rdbDep} {
		if dep == nil {
			continue
		}
		this.Deps = append(this.Deps, *dep)
		if dep.Status != "ok" {
			this.Status = "degraded"
		}
	}

	status := http.StatusOK
	if this.Status != "ok" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, this)
}
