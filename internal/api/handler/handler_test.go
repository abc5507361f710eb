package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cafeondo/cafeondo-server/internal/model"
	"github.com/cafeondo/cafeondo-server/internal/notify"
	"github.com/cafeondo/cafeondo-server/internal/store"
)

type fakeStore struct {
	created   []*model.Measurement
	createErr error

	rankings map[string]*model.RankingSnapshot

	healthyErr error
}

func (f *fakeStore) CreateMeasurement(ctx context.Context, m *model.Measurement) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, m)
	return nil
}

func (f *fakeStore) Ranking(ctx context.Context, board string) (*model.RankingSnapshot, error) {
	snap, ok := f.rankings[board]
	if !ok {
		return nil, store.ErrNotFound
	}
	return snap, nil
}

func (f *fakeStore) Healthy(ctx context.Context) error {
	return f.healthyErr
}

type fakeAggregator struct {
	applied  []*model.Measurement
	calls    int
	applyErr error
	failTo   int // return applyErr for this many calls; 0 means every call
}

func (f *fakeAggregator) Apply(ctx context.Context, m *model.Measurement) error {
	f.calls++
	if f.applyErr != nil && (f.failTo == 0 || f.calls <= f.failTo) {
		return f.applyErr
	}
	f.applied = append(f.applied, m)
	return nil
}

type fakeNotifier struct {
	userID    string
	level     int
	delivered bool
	err       error
}

func (f *fakeNotifier) NotifyLevelUp(ctx context.Context, userID string, level int) (bool, error) {
	f.userID = userID
	f.level = level
	return f.delivered, f.err
}

func testHandler(fs *fakeStore, agg *fakeAggregator, n *fakeNotifier) *Handler {
	return New(fs, agg, n, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func transientErr() error {
	return status.Error(codes.Unavailable, "backend unavailable")
}

// --------------------------------------------------------------------------
// Measurement ingestion
// --------------------------------------------------------------------------

func postMeasurement(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/measurements", strings.NewReader(body))
	req = req.WithContext(WithCaller(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	h.CreateMeasurement(rec, req)
	return rec
}

func TestCreateMeasurement(t *testing.T) {
	fs := &fakeStore{}
	agg := &fakeAggregator{}
	h := testHandler(fs, agg, &fakeNotifier{})

	rec := postMeasurement(h, `{"cafeId":"cafe-1","decibelLevel":52.5,"durationSeconds":30}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}

	var resp struct {
		ID      string `json:"id"`
		Applied bool   `json:"applied"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" || !resp.Applied {
		t.Errorf("response = %+v, want generated id and applied=true", resp)
	}

	if len(fs.created) != 1 {
		t.Fatalf("store got %d creates, want 1", len(fs.created))
	}
	m := fs.created[0]
	if m.UserID != "user-1" {
		t.Errorf("UserID = %q, want the verified caller", m.UserID)
	}
	if m.NoiseCategory != model.CategoryModerate {
		t.Errorf("NoiseCategory = %q, want derived %q", m.NoiseCategory, model.CategoryModerate)
	}
	if m.Timestamp.IsZero() {
		t.Error("Timestamp not defaulted")
	}
	if len(agg.applied) != 1 {
		t.Errorf("aggregator got %d applies, want 1", len(agg.applied))
	}
}

func TestCreateMeasurementIgnoresBodyUserID(t *testing.T) {
	fs := &fakeStore{}
	h := testHandler(fs, &fakeAggregator{}, &fakeNotifier{})

	rec := postMeasurement(h, `{"cafeId":"cafe-1","userId":"someone-else","decibelLevel":50,"durationSeconds":30}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if fs.created[0].UserID != "user-1" {
		t.Errorf("UserID = %q, body must not override the caller", fs.created[0].UserID)
	}
}

func TestCreateMeasurementRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"cafeId":`},
		{name: "missing cafe", body: `{"decibelLevel":50,"durationSeconds":30}`},
		{name: "decibels out of range", body: `{"cafeId":"c","decibelLevel":300,"durationSeconds":30}`},
		{name: "zero duration", body: `{"cafeId":"c","decibelLevel":50}`},
		{name: "category mismatch", body: `{"cafeId":"c","decibelLevel":50,"noiseCategory":"loud","durationSeconds":30}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{}
			h := testHandler(fs, &fakeAggregator{}, &fakeNotifier{})
			rec := postMeasurement(h, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body)
			}
			if len(fs.created) != 0 {
				t.Error("invalid payload reached the store")
			}
		})
	}
}

func TestCreateMeasurementStoreUnavailable(t *testing.T) {
	fs := &fakeStore{createErr: transientErr()}
	h := testHandler(fs, &fakeAggregator{}, &fakeNotifier{})

	rec := postMeasurement(h, `{"cafeId":"cafe-1","decibelLevel":50,"durationSeconds":30}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestCreateMeasurementReportsAggregationFailure(t *testing.T) {
	fs := &fakeStore{}
	agg := &fakeAggregator{applyErr: errors.New("decode cafe: bad document")}
	h := testHandler(fs, agg, &fakeNotifier{})

	rec := postMeasurement(h, `{"cafeId":"cafe-1","decibelLevel":50,"durationSeconds":30}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; the measurement is durable", rec.Code, http.StatusCreated)
	}
	var resp struct {
		Applied bool `json:"applied"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Applied {
		t.Error("applied = true, want false when aggregation fails")
	}
	if agg.calls != 1 {
		t.Errorf("aggregator called %d times, want 1; non-transient errors must not retry", agg.calls)
	}
}

func TestCreateMeasurementRetriesTransientFold(t *testing.T) {
	fs := &fakeStore{}
	agg := &fakeAggregator{applyErr: transientErr(), failTo: 2}
	h := testHandler(fs, agg, &fakeNotifier{})

	rec := postMeasurement(h, `{"cafeId":"cafe-1","decibelLevel":50,"durationSeconds":30}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var resp struct {
		Applied bool `json:"applied"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Applied {
		t.Error("applied = false, want true after transient failures recover")
	}
	if agg.calls != 3 {
		t.Errorf("aggregator called %d times, want 3 (two transient failures then success)", agg.calls)
	}
	if len(agg.applied) != 1 {
		t.Errorf("aggregator applied %d measurements, want exactly 1", len(agg.applied))
	}
}

func TestCreateMeasurementTransientFoldExhausted(t *testing.T) {
	fs := &fakeStore{}
	agg := &fakeAggregator{applyErr: transientErr()}
	h := testHandler(fs, agg, &fakeNotifier{})

	rec := postMeasurement(h, `{"cafeId":"cafe-1","decibelLevel":50,"durationSeconds":30}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; the measurement is durable either way", rec.Code, http.StatusCreated)
	}
	var resp struct {
		Applied bool `json:"applied"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Applied {
		t.Error("applied = true, want false once the retry budget is spent")
	}
	if agg.calls != 3 {
		t.Errorf("aggregator called %d times, want 3 (initial attempt plus two retries)", agg.calls)
	}
}

// --------------------------------------------------------------------------
// Level-up callable
// --------------------------------------------------------------------------

func postLevelUp(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/level-up", strings.NewReader(body))
	req = req.WithContext(WithCaller(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	h.LevelUp(rec, req)
	return rec
}

func TestLevelUp(t *testing.T) {
	n := &fakeNotifier{delivered: true}
	h := testHandler(&fakeStore{}, &fakeAggregator{}, n)

	rec := postLevelUp(h, `{"level":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	if n.userID != "user-1" || n.level != 3 {
		t.Errorf("notifier called with (%q, %d), want (user-1, 3)", n.userID, n.level)
	}
	var resp struct {
		Delivered bool `json:"delivered"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Delivered {
		t.Error("delivered = false, want true")
	}
}

func TestLevelUpInvalidLevel(t *testing.T) {
	n := &fakeNotifier{err: notify.ErrInvalidLevel}
	h := testHandler(&fakeStore{}, &fakeAggregator{}, n)

	rec := postLevelUp(h, `{"level":7}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLevelUpInternalErrorHidesDetail(t *testing.T) {
	n := &fakeNotifier{err: errors.New("firestore: secret internals")}
	h := testHandler(&fakeStore{}, &fakeAggregator{}, n)

	rec := postLevelUp(h, `{"level":2}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "secret internals") {
		t.Error("internal error detail leaked to the caller")
	}
}

// --------------------------------------------------------------------------
// Rankings
// --------------------------------------------------------------------------

func getRanking(h *Handler, board string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rankings/"+board, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("board", board)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.GetRanking(rec, req)
	return rec
}

func TestGetRanking(t *testing.T) {
	snap := &model.RankingSnapshot{
		Items: []model.RankingEntry{
			{Rank: 1, Cafe: &model.CafeRankingInfo{CafeID: "cafe-1", Name: "Alpha", AverageNoiseLevel: 38}},
		},
		Period: model.RankingPeriod{
			Start: time.Date(2026, 3, 8, 15, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 3, 15, 15, 0, 0, 0, time.UTC),
		},
	}
	fs := &fakeStore{rankings: map[string]*model.RankingSnapshot{model.BoardQuietCafes: snap}}
	h := testHandler(fs, &fakeAggregator{}, &fakeNotifier{})

	rec := getRanking(h, model.BoardQuietCafes)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	var got model.RankingSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Cafe.CafeID != "cafe-1" {
		t.Errorf("snapshot = %+v, want the stored board", got)
	}
}

func TestGetRankingUnknownBoard(t *testing.T) {
	h := testHandler(&fakeStore{}, &fakeAggregator{}, &fakeNotifier{})
	if rec := getRanking(h, "loudest_users"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetRankingNotComputed(t *testing.T) {
	h := testHandler(&fakeStore{}, &fakeAggregator{}, &fakeNotifier{})
	if rec := getRanking(h, model.BoardTopMeasurers); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

// --------------------------------------------------------------------------
// Health
// --------------------------------------------------------------------------

func TestHealthCheckStore(t *testing.T) {
	tests := []struct {
		name       string
		healthyErr error
		wantStatus int
	}{
		{name: "connected", wantStatus: http.StatusOK},
		{name: "disconnected", healthyErr: errors.New("unreachable"), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandler(&fakeStore{healthyErr: tt.healthyErr}, &fakeAggregator{}, &fakeNotifier{})
			req := httptest.NewRequest(http.MethodGet, "/health/store", nil)
			rec := httptest.NewRecorder()
			h.HealthCheckStore(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
