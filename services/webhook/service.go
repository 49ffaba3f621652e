package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"elaview-bookingops/pkg/chat"
	"elaview-bookingops/pkg/errutil"
	"elaview-bookingops/services/booking"
	"elaview-bookingops/services/walk"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	bookings *booking.Service
	walks    *walk.Service
	notifier chat.Notifier
}

type Params struct {
	fx.In
	Bookings *booking.Service
	Walks    *walk.Service
	Notifier chat.Notifier
}

func NewService(p Params) *Service {
	return &Service{
		bookings: p.Bookings,
		walks:    p.Walks,
		notifier: p.Notifier,
	}
}

// Handle processes one chat webhook delivery. Business rejections
// (unknown booking, ambiguous prefix, invalid transition, lost write race)
// are answered over chat with HTTP 200 so the provider never retries them;
// only unexpected failures produce a 500.
func (s *Service) Handle(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("panic in webhook handler", zap.Any("panic", r))
			s.fail(c, fmt.Errorf("panic: %v", r))
		}
	}()

	var payload InboundPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.fail(c, fmt.Errorf("malformed webhook payload: %w", err))
		return
	}

	cmd, ok := Classify(&payload)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": true})
		return
	}

	zap.L().Info("chat command received",
		zap.String("command", cmd.Kind.String()),
		zap.String("arg", cmd.Arg),
		zap.String("chat_id", payload.SenderData.ChatID),
	)

	extras, err := s.dispatch(c.Request.Context(), cmd)
	if err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) && recoverable(be.Code) {
			s.reply(c.Request.Context(), be.Message)
			c.JSON(http.StatusOK, gin.H{
				"received":  true,
				"processed": false,
				"reason":    string(be.Code),
			})
			return
		}
		s.fail(c, err)
		return
	}

	resp := gin.H{"received": true}
	for k, v := range extras {
		resp[k] = v
	}
	c.JSON(http.StatusOK, resp)
}

// dispatch routes a classified command to exactly one handler. Every input
// falls into exactly one branch, including the unrecognized fallback.
func (s *Service) dispatch(ctx context.Context, cmd Command) (gin.H, error) {
	if cmd.Kind.RequiresArg() && cmd.Arg == "" {
		s.reply(ctx, usageMessage(cmd.Kind))
		return gin.H{"processed": false, "reason": "missing_argument"}, nil
	}

	switch cmd.Kind {
	case KindHelp:
		s.reply(ctx, helpText)
		return gin.H{"processed": true, "command": cmd.Kind.String()}, nil

	case KindSimulate:
		b, err := s.bookings.CreateSimulation(ctx)
		if err != nil {
			return nil, err
		}
		s.reply(ctx, simulateMessage(b))
		return gin.H{"processed": true, "command": cmd.Kind.String(), "bookingId": b.ID}, nil

	case KindStatus:
		list, err := s.bookings.ListOpen(ctx)
		if err != nil {
			return nil, err
		}
		s.reply(ctx, statusMessage(list))
		return gin.H{"processed": true, "command": cmd.Kind.String(), "count": len(list)}, nil

	case KindApprove, KindDeny, KindWait, KindBypass, KindClose:
		b, err := s.bookings.ResolveByPrefix(ctx, cmd.Arg)
		if err != nil {
			return nil, err
		}
		return s.transition(ctx, cmd.Kind, b)

	default:
		s.reply(ctx, notRecognizedMessage(cmd.Raw))
		return gin.H{"processed": false, "reason": "unrecognized"}, nil
	}
}

func (s *Service) transition(ctx context.Context, kind Kind, b *booking.Booking) (gin.H, error) {
	result := gin.H{"processed": true, "command": kind.String(), "bookingId": b.ID}

	switch kind {
	case KindApprove:
		updated, err := s.bookings.Approve(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		s.reply(ctx, approveMessage(updated))
		result["status"] = updated.Status

	case KindDeny:
		updated, err := s.bookings.Deny(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		s.reply(ctx, denyMessage(updated))
		result["status"] = updated.Status

	case KindWait:
		run, err := s.walks.Start(ctx, b.ID, walk.ModeWait)
		if err != nil {
			return nil, err
		}
		s.reply(ctx, waitMessage(b))
		result["runId"] = run.ID

	case KindBypass:
		s.reply(ctx, bypassMessage(b))
		run, err := s.walks.Start(ctx, b.ID, walk.ModeBypass)
		if err != nil {
			return nil, err
		}
		result["runId"] = run.ID

	case KindClose:
		updated, err := s.bookings.Close(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		s.reply(ctx, closeMessage(updated))
	}

	return result, nil
}

// reply sends a chat message, logging delivery failures without letting
// them affect the command outcome.
func (s *Service) reply(ctx context.Context, text string) {
	if err := s.notifier.Send(ctx, text); err != nil {
		zap.L().Warn("failed to send chat reply", zap.Error(err))
	}
}

// fail answers an unhandled error: best-effort error notification, then a
// 500 that still acknowledges receipt.
func (s *Service) fail(c *gin.Context, err error) {
	zap.L().Error("webhook command failed", zap.Error(err))
	s.reply(c.Request.Context(), "⚠️ Something went wrong processing that command. Check the service logs.")
	c.JSON(http.StatusInternalServerError, gin.H{
		"received": true,
		"error":    err.Error(),
	})
}

func recoverable(code errutil.CoreStatus) bool {
	switch code {
	case errutil.StatusNotFound,
		errutil.StatusConflict,
		errutil.StatusUnprocessableEntity,
		errutil.StatusValidationFailed:
		return true
	default:
		return false
	}
}
