package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"elaview-bookingops/pkg/config"
	"elaview-bookingops/services/booking"
	"elaview-bookingops/services/testutil"
	"elaview-bookingops/services/walk"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeNotifier) last(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

type fakeEnqueuer struct{}

func (fakeEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

type fixture struct {
	engine   *gin.Engine
	db       *gorm.DB
	bookings *booking.Service
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &booking.Booking{}, &walk.Run{})
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	cfg := &config.Config{}
	bookings := booking.NewService(booking.Params{DB: db, Node: node, Config: cfg})
	notifier := &fakeNotifier{}
	walks := walk.NewService(walk.Params{
		DB:       db,
		Node:     node,
		Config:   cfg,
		Bookings: bookings,
		Enqueuer: fakeEnqueuer{},
		Notifier: notifier,
	})

	svc := NewService(Params{Bookings: bookings, Walks: walks, Notifier: notifier})

	engine := gin.New()
	engine.POST("/webhooks/chat", svc.Handle)

	return &fixture{engine: engine, db: db, bookings: bookings, notifier: notifier}
}

func (f *fixture) post(t *testing.T, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func (f *fixture) send(t *testing.T, text string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	payload := map[string]any{
		"typeWebhook": "incomingMessageReceived",
		"senderData":  map[string]any{"chatId": "12025551234@c.us"},
		"messageData": map[string]any{
			"textMessageData": map[string]any{"textMessage": text},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return f.post(t, body)
}

func TestIgnoredEventsAreAcknowledged(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(map[string]any{"typeWebhook": "stateInstanceChanged"})
	w, resp := f.post(t, body)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["received"])
	require.Equal(t, true, resp["ignored"])
}

func TestHelpCommand(t *testing.T) {
	f := newFixture(t)

	w, resp := f.send(t, "commands")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["processed"])
	require.Contains(t, f.notifier.last(t), "elaview-simulate")
}

func TestUnrecognizedCommand(t *testing.T) {
	f := newFixture(t)

	w, resp := f.send(t, "hello there")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["received"])
	require.Equal(t, false, resp["processed"])
	require.Equal(t, "unrecognized", resp["reason"])
	require.Contains(t, f.notifier.last(t), "not recognized")
}

func TestMissingArgument(t *testing.T) {
	f := newFixture(t)

	w, resp := f.send(t, "approve")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, resp["processed"])
	require.Equal(t, "missing_argument", resp["reason"])
	require.Contains(t, f.notifier.last(t), "needs a booking ID")
}

// Mirrors the documented admin session: simulate, approve, approve again,
// then deny — the repeats must be reported and leave the booking alone.
func TestSimulateApproveScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, resp := f.send(t, "elaview-simulate")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["processed"])
	id, ok := resp["bookingId"].(string)
	require.True(t, ok)

	created, err := f.bookings.ByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, booking.StatusPendingApproval, created.Status)
	require.EqualValues(t, 50000, created.TotalAmountCents)

	prefix := booking.ShortID(id)

	w, resp = f.send(t, "approve "+prefix)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["processed"])

	active, err := f.bookings.ByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, booking.StatusActive, active.Status)

	w, resp = f.send(t, "approve "+prefix)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, resp["processed"])
	require.Equal(t, "UNPROCESSABLE_ENTITY", resp["reason"])

	w, resp = f.send(t, "deny "+prefix)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, resp["processed"])

	unchanged, err := f.bookings.ByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, booking.StatusActive, unchanged.Status)
	require.Equal(t, active.Version, unchanged.Version)
}

func TestBypassScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, resp := f.send(t, "elaview-simulate")
	id := resp["bookingId"].(string)

	w, resp := f.send(t, "bypass "+booking.ShortID(id))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, resp["processed"])

	final, err := f.bookings.ByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, booking.StatusCompleted, final.Status)
	require.Equal(t, booking.ProofApproved, final.ProofStatus)
	require.Len(t, final.Photos(), 1)
	require.NotNil(t, final.ProofApprovedAt)
}

func TestUnknownPrefixReportsNotFound(t *testing.T) {
	f := newFixture(t)

	w, resp := f.send(t, "approve 9999999")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, resp["processed"])
	require.Equal(t, "NOT_FOUND", resp["reason"])
	require.Contains(t, f.notifier.last(t), "elaview-status")
}

func TestAmbiguousPrefixListsCandidates(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	for _, id := range []string{"185000011111", "185000022222"} {
		require.NoError(t, f.db.Create(&booking.Booking{
			ID:           id,
			Status:       booking.StatusPendingApproval,
			IsSimulation: true,
			CreatedAt:    now,
		}).Error)
	}

	w, resp := f.send(t, "close 185")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, false, resp["processed"])
	require.Equal(t, "CONFLICT", resp["reason"])
	require.Contains(t, f.notifier.last(t), "longer prefix")
}

func TestStatusListingExcludesClosed(t *testing.T) {
	f := newFixture(t)

	_, resp := f.send(t, "elaview-simulate")
	first := resp["bookingId"].(string)
	_, resp = f.send(t, "elaview-status")
	require.EqualValues(t, 1, resp["count"])

	f.send(t, "close "+booking.ShortID(first))

	_, resp = f.send(t, "elaview-status")
	require.EqualValues(t, 0, resp["count"])
	require.Contains(t, f.notifier.last(t), "No open simulation bookings")
}

func TestMalformedPayloadReturns500(t *testing.T) {
	f := newFixture(t)

	w, resp := f.post(t, []byte("{not json"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, true, resp["received"])
	require.Contains(t, resp["error"], "malformed webhook payload")
}
