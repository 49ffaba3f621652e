package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"elaview-bookingops/pkg/config"
	"elaview-bookingops/pkg/db/option"
	"elaview-bookingops/pkg/errutil"
	"elaview-bookingops/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Fixed terms for synthetic bookings: $500 total, $50 platform fee,
// $450 to the space owner, 30-day window.
const (
	SimulationTotalCents       = 50000
	SimulationPlatformFeeCents = 5000
	SimulationOwnerCents       = 45000
	SimulationWindowDays       = 30

	// PlaceholderProofPhoto stands in for a real installation photo on
	// simulated bookings.
	PlaceholderProofPhoto = "https://placehold.co/800x600?text=Proof+of+Installation"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	bookings repository.Repository[Booking]

	statusLimit int
}

type Params struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p Params) *Service {
	limit := p.Config.Simulation.StatusLimit
	if limit <= 0 {
		limit = 10
	}
	return &Service{
		db:          p.DB,
		node:        p.Node,
		bookings:    repository.ProvideStore[Booking](p.DB),
		statusLimit: limit,
	}
}

// CreateSimulation creates a synthetic booking in its initial state.
func (s *Service) CreateSimulation(ctx context.Context) (*Booking, error) {
	now := time.Now()
	b := &Booking{
		ID:               s.node.Generate().String(),
		Status:           StatusPendingApproval,
		TotalAmountCents: SimulationTotalCents,
		PlatformFeeCents: SimulationPlatformFeeCents,
		OwnerAmountCents: SimulationOwnerCents,
		StartDate:        now,
		EndDate:          now.AddDate(0, 0, SimulationWindowDays),
		IsSimulation:     true,
		Meta:             datatypes.NewJSONType(Meta{Source: "chat-simulate"}),
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, errutil.Internal("failed to create simulation booking", errutil.WithErr(err))
	}
	return b, nil
}

// ResolveByPrefix resolves an identifier prefix to exactly one booking.
// Zero matches is NotFound, two or more is a conflict listing candidates.
func (s *Service) ResolveByPrefix(ctx context.Context, prefix string) (*Booking, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || !isAlphanumeric(prefix) {
		return nil, errutil.ValidationFailed(fmt.Sprintf("Booking ID %q is not valid. IDs are alphanumeric; send elaview-status to list open bookings.", prefix))
	}

	matches, err := s.bookings.Find(ctx, nil,
		option.WithWhere("id LIKE ?", prefix+"%"),
		option.WithOrder("created_at DESC"),
	)
	if err != nil {
		return nil, errutil.Internal("booking lookup failed", errutil.WithErr(err))
	}

	switch len(matches) {
	case 0:
		return nil, errutil.NotFound(fmt.Sprintf("No booking found matching %q. Send elaview-status to list open bookings.", prefix))
	case 1:
		return matches[0], nil
	default:
		details := make([]errutil.Detail, 0, len(matches))
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			details = append(details, errutil.Detail{Field: "id", Message: m.ID})
			ids = append(ids, fmt.Sprintf("%s (%s)", ShortID(m.ID), m.Status))
		}
		return nil, errutil.Conflict(
			fmt.Sprintf("Booking ID %q matches %d bookings: %s. Use a longer prefix.", prefix, len(matches), strings.Join(ids, ", ")),
			errutil.WithDetails(details...),
		)
	}
}

// ByID loads a booking by its full identifier.
func (s *Service) ByID(ctx context.Context, id string) (*Booking, error) {
	b, err := s.bookings.FindOne(ctx, nil, option.WithWhere("id = ?", id))
	if err != nil {
		return nil, errutil.Internal("booking lookup failed", errutil.WithErr(err))
	}
	if b == nil {
		return nil, errutil.NotFound(fmt.Sprintf("No booking found with ID %s.", ShortID(id)))
	}
	return b, nil
}

// Approve advances a booking one step: PENDING_APPROVAL becomes ACTIVE,
// AWAITING_PROOF becomes COMPLETED with the proof approved. Any other
// status is rejected without mutation.
func (s *Service) Approve(ctx context.Context, id string) (*Booking, error) {
	b, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch b.Status {
	case StatusPendingApproval:
		return s.apply(ctx, b, map[string]any{
			"status": StatusActive,
		})
	case StatusAwaitingProof:
		now := time.Now()
		return s.apply(ctx, b, map[string]any{
			"status":            StatusCompleted,
			"proof_status":      ProofApproved,
			"proof_approved_at": now,
		})
	default:
		return nil, errutil.UnprocessableEntity(fmt.Sprintf(
			"Cannot approve booking %s: status is %s. Approve applies to %s or %s.",
			ShortID(b.ID), b.Status, StatusPendingApproval, StatusAwaitingProof))
	}
}

// Deny rejects a booking one step: PENDING_APPROVAL becomes REJECTED,
// AWAITING_PROOF keeps its status but marks the proof rejected. Any other
// status is rejected without mutation.
func (s *Service) Deny(ctx context.Context, id string) (*Booking, error) {
	b, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch b.Status {
	case StatusPendingApproval:
		return s.apply(ctx, b, map[string]any{
			"status": StatusRejected,
		})
	case StatusAwaitingProof:
		return s.apply(ctx, b, map[string]any{
			"proof_status": ProofRejected,
		})
	default:
		return nil, errutil.UnprocessableEntity(fmt.Sprintf(
			"Cannot deny booking %s: status is %s. Deny applies to %s or %s.",
			ShortID(b.ID), b.Status, StatusPendingApproval, StatusAwaitingProof))
	}
}

// ForceActivate unconditionally moves a booking to ACTIVE. Lifecycle walks
// use it; it is not exposed as a user command on its own.
func (s *Service) ForceActivate(ctx context.Context, id string) (*Booking, error) {
	b, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, b, map[string]any{
		"status": StatusActive,
	})
}

// ForceAwaitProof unconditionally moves a booking to AWAITING_PROOF and
// attaches the placeholder installation photo.
func (s *Service) ForceAwaitProof(ctx context.Context, id string) (*Booking, error) {
	b, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, b, map[string]any{
		"status":       StatusAwaitingProof,
		"proof_photos": EncodePhotos([]string{PlaceholderProofPhoto}),
	})
}

// ForceComplete unconditionally finishes a booking: COMPLETED, proof
// approved and stamped, placeholder photo if none was attached yet. This
// is the testing shortcut behind bypass and the final walk step; it skips
// status validation on purpose.
func (s *Service) ForceComplete(ctx context.Context, id string) (*Booking, error) {
	b, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	patch := map[string]any{
		"status":            StatusCompleted,
		"proof_status":      ProofApproved,
		"proof_approved_at": now,
	}
	if len(b.Photos()) == 0 {
		patch["proof_photos"] = EncodePhotos([]string{PlaceholderProofPhoto})
	}
	return s.apply(ctx, b, patch)
}

// Bypass forces a booking straight to its terminal completed state from
// any starting status.
func (s *Service) Bypass(ctx context.Context, id string) (*Booking, error) {
	return s.ForceComplete(ctx, id)
}

// Close soft-removes a booking from the status listing. Status and proof
// state are untouched.
func (s *Service) Close(ctx context.Context, id string) (*Booking, error) {
	b, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Closed {
		return b, nil
	}

	now := time.Now()
	return s.apply(ctx, b, map[string]any{
		"closed":    true,
		"closed_at": now,
	})
}

// ListOpen returns the most recent open simulation bookings, newest first,
// capped at the configured listing limit.
func (s *Service) ListOpen(ctx context.Context) ([]*Booking, error) {
	results, err := s.bookings.Find(ctx, &Booking{IsSimulation: true},
		option.WithWhere("closed = ?", false),
		option.WithWhere("status IN ?", OpenStatuses),
		option.WithOrder("created_at DESC"),
		option.WithLimit(s.statusLimit),
	)
	if err != nil {
		return nil, errutil.Internal("failed to list open bookings", errutil.WithErr(err))
	}
	return results, nil
}

// apply writes a patch guarded by a version compare-and-swap. A lost race
// surfaces as a conflict instead of silently overwriting.
func (s *Service) apply(ctx context.Context, b *Booking, patch map[string]any) (*Booking, error) {
	patch["version"] = b.Version + 1

	res := s.db.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(patch)
	if res.Error != nil {
		return nil, errutil.Internal("failed to update booking", errutil.WithErr(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, errutil.Conflict(fmt.Sprintf(
			"Booking %s was modified concurrently. Re-check with elaview-status and retry.", ShortID(b.ID)))
	}

	return s.ByID(ctx, b.ID)
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
