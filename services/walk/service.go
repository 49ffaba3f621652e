package walk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"elaview-bookingops/pkg/chat"
	"elaview-bookingops/pkg/config"
	"elaview-bookingops/pkg/db/option"
	"elaview-bookingops/pkg/errutil"
	"elaview-bookingops/pkg/repository"
	"elaview-bookingops/pkg/task"
	"elaview-bookingops/services/booking"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TotalSteps in a lifecycle walk: activate, await proof, complete, payout.
const TotalSteps = 4

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	bookings *booking.Service
	enqueuer task.Enqueuer
	notifier chat.Notifier
	runs     repository.Repository[Run]

	// delay applied before each step in wait mode.
	delays [TotalSteps]time.Duration
}

type Params struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Bookings *booking.Service
	Enqueuer task.Enqueuer
	Notifier chat.Notifier
}

func NewService(p Params) *Service {
	sim := p.Config.Simulation
	return &Service{
		db:       p.DB,
		node:     p.Node,
		bookings: p.Bookings,
		enqueuer: p.Enqueuer,
		notifier: p.Notifier,
		runs:     repository.ProvideStore[Run](p.DB),
		delays: [TotalSteps]time.Duration{
			sim.ActivateDelay,
			sim.ProofDelay,
			sim.CompleteDelay,
			sim.PayoutDelay,
		},
	}
}

// Start begins a lifecycle walk for a booking. Bypass mode executes every
// step inline; wait mode enqueues the first step and returns immediately,
// with each step notification arriving as the worker advances the run.
func (s *Service) Start(ctx context.Context, bookingID, mode string) (*Run, error) {
	if _, err := s.bookings.ByID(ctx, bookingID); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        s.node.Generate().String(),
		BookingID: bookingID,
		Mode:      mode,
		Status:    RunRunning,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, errutil.Internal("failed to create walk run", errutil.WithErr(err))
	}

	if mode == ModeBypass {
		for step := 1; step <= TotalSteps; step++ {
			if err := s.executeStep(ctx, run, step); err != nil {
				s.markFailed(ctx, run)
				return nil, err
			}
		}
		return run, nil
	}

	if err := s.enqueueStep(ctx, run, 1); err != nil {
		s.markFailed(ctx, run)
		return nil, errutil.Internal("failed to schedule lifecycle walk", errutil.WithErr(err))
	}

	zap.L().Info("lifecycle walk scheduled",
		zap.String("run_id", run.ID),
		zap.String("booking_id", bookingID),
		zap.String("mode", mode),
	)
	return run, nil
}

// RunByID loads a walk run.
func (s *Service) RunByID(ctx context.Context, id string) (*Run, error) {
	run, err := s.runs.FindOne(ctx, nil, option.WithWhere("id = ?", id))
	if err != nil {
		return nil, errutil.Internal("walk run lookup failed", errutil.WithErr(err))
	}
	if run == nil {
		return nil, errutil.NotFound(fmt.Sprintf("no walk run with id %s", id))
	}
	return run, nil
}

// HandleStepTask is the asynq handler advancing a walk by one step. Stale
// or duplicate deliveries are skipped; a step that keeps failing past its
// retry budget marks the run failed so it can be detected as stuck.
func (s *Service) HandleStepTask(ctx context.Context, t *asynq.Task) error {
	var p StepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid step payload: %w", err)
	}

	zapLog := zap.L().With(
		zap.String("run_id", p.RunID),
		zap.String("booking_id", p.BookingID),
		zap.Int("step", p.Step),
	)

	run, err := s.RunByID(ctx, p.RunID)
	if err != nil {
		return err
	}
	if run.Status != RunRunning {
		zapLog.Warn("skipping step for non-running walk", zap.String("status", run.Status))
		return nil
	}
	if p.Step != run.Step+1 {
		zapLog.Warn("skipping stale step delivery", zap.Int("cursor", run.Step))
		return nil
	}

	if err := s.executeStep(ctx, run, p.Step); err != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			zapLog.Error("walk step exhausted retries, marking run failed", zap.Error(err))
			s.markFailed(ctx, run)
		}
		return err
	}

	if p.Step < TotalSteps {
		if err := s.enqueueStep(ctx, run, p.Step+1); err != nil {
			s.markFailed(ctx, run)
			return err
		}
	}
	return nil
}

func (s *Service) enqueueStep(ctx context.Context, run *Run, step int) error {
	t := NewStepTask(StepPayload{RunID: run.ID, BookingID: run.BookingID, Step: step})
	_, err := s.enqueuer.Enqueue(ctx, t, asynq.ProcessIn(s.delays[step-1]))
	return err
}

func (s *Service) executeStep(ctx context.Context, run *Run, step int) error {
	var b *booking.Booking
	var err error

	switch step {
	case 1:
		b, err = s.bookings.ForceActivate(ctx, run.BookingID)
	case 2:
		b, err = s.bookings.ForceAwaitProof(ctx, run.BookingID)
	case 3:
		b, err = s.bookings.ForceComplete(ctx, run.BookingID)
	case 4:
		// Payout announcement only, no booking mutation.
		b, err = s.bookings.ByID(ctx, run.BookingID)
	default:
		return fmt.Errorf("unknown lifecycle step %d", step)
	}
	if err != nil {
		return err
	}

	patch := map[string]any{"step": step}
	if step == TotalSteps {
		now := time.Now()
		patch["status"] = RunCompleted
		patch["completed_at"] = now
	}
	if err := s.db.WithContext(ctx).Model(&Run{}).Where("id = ?", run.ID).Updates(patch).Error; err != nil {
		return fmt.Errorf("failed to advance walk cursor: %w", err)
	}
	run.Step = step
	if step == TotalSteps {
		run.Status = RunCompleted
	}

	s.notify(ctx, stepMessage(step, b))
	return nil
}

func (s *Service) markFailed(ctx context.Context, run *Run) {
	if err := s.db.WithContext(ctx).Model(&Run{}).Where("id = ?", run.ID).Update("status", RunFailed).Error; err != nil {
		zap.L().Error("failed to mark walk run failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	run.Status = RunFailed
}

func (s *Service) notify(ctx context.Context, text string) {
	if err := s.notifier.Send(ctx, text); err != nil {
		zap.L().Warn("failed to send walk notification", zap.Error(err))
	}
}

func stepMessage(step int, b *booking.Booking) string {
	short := booking.ShortID(b.ID)
	switch step {
	case 1:
		return fmt.Sprintf("📋 Booking %s is now ACTIVE — the space owner approved the request.", short)
	case 2:
		return fmt.Sprintf("📸 Booking %s is AWAITING_PROOF — an installation photo was uploaded for review.", short)
	case 3:
		return fmt.Sprintf("✅ Booking %s is COMPLETED — installation proof approved.", short)
	default:
		return fmt.Sprintf("💸 Payout scheduled for booking %s: %s to the space owner (%s platform fee).",
			short, booking.FormatUSD(b.OwnerAmountCents), booking.FormatUSD(b.PlatformFeeCents))
	}
}
