package booking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"elaview-bookingops/pkg/config"
	"elaview-bookingops/pkg/errutil"
	"elaview-bookingops/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &Booking{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{DB: db, Node: node, Config: &config.Config{}}), db
}

func requireCode(t *testing.T, err error, code errutil.CoreStatus) errutil.BaseError {
	t.Helper()
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, code, be.Code)
	return be
}

func TestCreateSimulation(t *testing.T) {
	svc, _ := newService(t)

	b, err := svc.CreateSimulation(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, b.ID)
	require.Equal(t, StatusPendingApproval, b.Status)
	require.Equal(t, ProofNone, b.ProofStatus)
	require.EqualValues(t, 50000, b.TotalAmountCents)
	require.EqualValues(t, 5000, b.PlatformFeeCents)
	require.EqualValues(t, 45000, b.OwnerAmountCents)
	require.True(t, b.IsSimulation)
	require.False(t, b.Closed)
	require.Equal(t, "chat-simulate", b.Meta.Data().Source)
	require.WithinDuration(t, b.StartDate.AddDate(0, 0, SimulationWindowDays), b.EndDate, time.Second)
}

func TestApprovePendingThenRepeat(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	b, err := svc.CreateSimulation(ctx)
	require.NoError(t, err)

	updated, err := svc.Approve(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, updated.Status)

	// Second approve is an invalid transition and must not mutate.
	_, err = svc.Approve(ctx, b.ID)
	requireCode(t, err, errutil.StatusUnprocessableEntity)

	// Deny on ACTIVE is equally invalid.
	_, err = svc.Deny(ctx, b.ID)
	requireCode(t, err, errutil.StatusUnprocessableEntity)

	reloaded, err := svc.ByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, reloaded.Status)
	require.Equal(t, updated.Version, reloaded.Version)
}

func TestApproveAwaitingProofCompletes(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	b, err := svc.CreateSimulation(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Model(&Booking{}).Where("id = ?", b.ID).Update("status", StatusAwaitingProof).Error)

	updated, err := svc.Approve(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, updated.Status)
	require.Equal(t, ProofApproved, updated.ProofStatus)
	require.NotNil(t, updated.ProofApprovedAt)
}

func TestDenyPendingRejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	b, err := svc.CreateSimulation(ctx)
	require.NoError(t, err)

	updated, err := svc.Deny(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, updated.Status)
	require.Equal(t, ProofNone, updated.ProofStatus)
}

func TestDenyAwaitingProofKeepsStatus(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	b, err := svc.CreateSimulation(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Model(&Booking{}).Where("id = ?", b.ID).Update("status", StatusAwaitingProof).Error)

	updated, err := svc.Deny(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingProof, updated.Status)
	require.Equal(t, ProofRejected, updated.ProofStatus)
}

func TestNoOpRejectionsNeverMutate(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	for _, status := range []Status{StatusActive, StatusCompleted, StatusRejected, StatusCancelled} {
		b, err := svc.CreateSimulation(ctx)
		require.NoError(t, err)
		require.NoError(t, db.Model(&Booking{}).Where("id = ?", b.ID).Update("status", status).Error)

		before, err := svc.ByID(ctx, b.ID)
		require.NoError(t, err)

		_, err = svc.Approve(ctx, b.ID)
		requireCode(t, err, errutil.StatusUnprocessableEntity)
		_, err = svc.Deny(ctx, b.ID)
		requireCode(t, err, errutil.StatusUnprocessableEntity)

		after, err := svc.ByID(ctx, b.ID)
		require.NoError(t, err)
		require.Equal(t, before.Status, after.Status)
		require.Equal(t, before.ProofStatus, after.ProofStatus)
		require.Equal(t, before.Version, after.Version)
	}
}

func TestBypassTerminalFromEveryStatus(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	statuses := []Status{
		StatusPendingApproval, StatusActive, StatusAwaitingProof,
		StatusCompleted, StatusRejected, StatusCancelled,
	}
	for _, status := range statuses {
		b, err := svc.CreateSimulation(ctx)
		require.NoError(t, err)
		require.NoError(t, db.Model(&Booking{}).Where("id = ?", b.ID).Update("status", status).Error)

		updated, err := svc.Bypass(ctx, b.ID)
		require.NoError(t, err, "bypass from %s", status)
		require.Equal(t, StatusCompleted, updated.Status)
		require.Equal(t, ProofApproved, updated.ProofStatus)
		require.Len(t, updated.Photos(), 1)
		require.NotNil(t, updated.ProofApprovedAt)
	}
}

func insertBooking(t *testing.T, db *gorm.DB, id string, status Status, createdAt time.Time, sim, closed bool) {
	t.Helper()
	require.NoError(t, db.Create(&Booking{
		ID:           id,
		Status:       status,
		IsSimulation: sim,
		Closed:       closed,
		CreatedAt:    createdAt,
	}).Error)
}

func TestResolveByPrefix(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	now := time.Now()

	insertBooking(t, db, "18500001aaaa", StatusPendingApproval, now, true, false)
	insertBooking(t, db, "18500002bbbb", StatusActive, now, true, false)
	insertBooking(t, db, "29600003cccc", StatusActive, now, true, false)

	// Exactly one match.
	b, err := svc.ResolveByPrefix(ctx, "296")
	require.NoError(t, err)
	require.Equal(t, "29600003cccc", b.ID)

	// Zero matches.
	_, err = svc.ResolveByPrefix(ctx, "777")
	requireCode(t, err, errutil.StatusNotFound)

	// Multiple matches list every candidate.
	_, err = svc.ResolveByPrefix(ctx, "185")
	be := requireCode(t, err, errutil.StatusConflict)
	require.Len(t, be.Details, 2)

	// Longer prefix disambiguates.
	b, err = svc.ResolveByPrefix(ctx, "18500002")
	require.NoError(t, err)
	require.Equal(t, "18500002bbbb", b.ID)
}

func TestResolveByPrefixRejectsNonAlphanumeric(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.ResolveByPrefix(context.Background(), "abc-123")
	requireCode(t, err, errutil.StatusValidationFailed)

	_, err = svc.ResolveByPrefix(context.Background(), "  ")
	requireCode(t, err, errutil.StatusValidationFailed)
}

func TestCloseIsNonDestructive(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	b, err := svc.CreateSimulation(ctx)
	require.NoError(t, err)
	completed, err := svc.Bypass(ctx, b.ID)
	require.NoError(t, err)

	closed, err := svc.Close(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, closed.Closed)
	require.NotNil(t, closed.ClosedAt)
	require.Equal(t, completed.Status, closed.Status)
	require.Equal(t, completed.ProofStatus, closed.ProofStatus)

	// Close is idempotent.
	again, err := svc.Close(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, closed.Version, again.Version)
}

func TestListOpenFiltersOrdersAndCaps(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 12; i++ {
		insertBooking(t, db, fmt.Sprintf("open%04d", i), StatusPendingApproval, base.Add(time.Duration(i)*time.Minute), true, false)
	}
	insertBooking(t, db, "closedbooking", StatusActive, base.Add(2*time.Hour), true, true)
	insertBooking(t, db, "donebooking", StatusCompleted, base.Add(2*time.Hour), true, false)
	insertBooking(t, db, "realbooking", StatusActive, base.Add(2*time.Hour), false, false)

	list, err := svc.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, list, 10)

	// Newest first; the closed, completed and non-simulation rows are absent.
	require.Equal(t, "open0011", list[0].ID)
	require.Equal(t, "open0002", list[9].ID)
	for _, b := range list {
		require.True(t, b.IsSimulation)
		require.False(t, b.Closed)
		require.Contains(t, OpenStatuses, b.Status)
	}
}

func TestConcurrentWriteSurfacesConflict(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	b, err := svc.CreateSimulation(ctx)
	require.NoError(t, err)

	stale, err := svc.ByID(ctx, b.ID)
	require.NoError(t, err)

	// Another writer wins the race after our read.
	require.NoError(t, db.Model(&Booking{}).Where("id = ?", b.ID).Update("version", stale.Version+1).Error)

	_, err = svc.apply(ctx, stale, map[string]any{"status": StatusActive})
	requireCode(t, err, errutil.StatusConflict)
}

func TestFormatUSD(t *testing.T) {
	require.Equal(t, "$500.00", FormatUSD(50000))
	require.Equal(t, "$0.05", FormatUSD(5))
	require.Equal(t, "-$4.50", FormatUSD(-450))
}

func TestShortID(t *testing.T) {
	require.Equal(t, "12345678", ShortID("1234567890ab"))
	require.Equal(t, "abc", ShortID("abc"))
}
