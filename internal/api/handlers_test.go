package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/config"
	"github.com/patrickwarner/openbidtuner/internal/db"
	"github.com/patrickwarner/openbidtuner/internal/engine"
	"github.com/patrickwarner/openbidtuner/internal/history"
	"github.com/patrickwarner/openbidtuner/internal/models"
	"github.com/patrickwarner/openbidtuner/internal/observability"
)

type stubSummaries struct {
	summary models.RunSummary
	err     error
}

func (s *stubSummaries) LatestRunSummary(ctx context.Context, country string) (models.RunSummary, error) {
	return s.summary, s.err
}

type stubEngineStore struct {
	targets map[int]float64
}

func (s *stubEngineStore) GetWeights(ctx context.Context, country string) (models.Weights, error) {
	return models.DefaultWeights(country), nil
}

func (s *stubEngineStore) ListTargets(ctx context.Context, country string) (map[int]float64, error) {
	return s.targets, nil
}

func (s *stubEngineStore) LastChangeDate(ctx context.Context, e models.TargetingEntity, policy string, materialPct float64) (*time.Time, error) {
	return nil, nil
}

func (s *stubEngineStore) InsertRecommendation(ctx context.Context, r models.Recommendation) error {
	return nil
}

type stubLocker struct {
	acquireErr error
}

func (l *stubLocker) AcquireRunLock(ctx context.Context, country, runID string, ttl time.Duration) error {
	return l.acquireErr
}

func (l *stubLocker) ReleaseRunLock(ctx context.Context, country, runID string) {}

func (l *stubLocker) SaveRunSummary(ctx context.Context, s models.RunSummary) error { return nil }

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return &Server{
		Logger:    zap.NewNop(),
		PG:        &db.Postgres{DB: mockDB},
		Summaries: &stubSummaries{err: db.ErrNotFound},
		Metrics:   observability.NewNoOpRegistry(),
		Config:    config.Config{},
	}, mock
}

func withVars(r *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(r, vars)
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.HealthHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGetWeightsHandler(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectQuery("SELECT country, t0, d30, d365, lifetime FROM window_weights").
		WithArgs("de").
		WillReturnRows(sqlmock.NewRows([]string{"country", "t0", "d30", "d365", "lifetime"}).
			AddRow("de", 0.4, 0.3, 0.2, 0.1))

	req := withVars(httptest.NewRequest(http.MethodGet, "/api/weights/de", nil), map[string]string{"country": "de"})
	rec := httptest.NewRecorder()

	srv.GetWeightsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"t0":0.4`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutWeightsHandler_RejectsBadSum(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"t0":0.5,"d30":0.5,"d365":0.5,"lifetime":0.5}`
	req := withVars(httptest.NewRequest(http.MethodPut, "/api/weights/de", strings.NewReader(body)), map[string]string{"country": "de"})
	rec := httptest.NewRecorder()

	srv.PutWeightsHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "sum")
}

func TestPutWeightsHandler_Persists(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectExec("INSERT INTO window_weights").
		WithArgs("de", 0.4, 0.3, 0.2, 0.1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"t0":0.4,"d30":0.3,"d365":0.2,"lifetime":0.1}`
	req := withVars(httptest.NewRequest(http.MethodPut, "/api/weights/de", strings.NewReader(body)), map[string]string{"country": "de"})
	rec := httptest.NewRecorder()

	srv.PutWeightsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTargetHandler_InvalidID(t *testing.T) {
	srv, _ := newTestServer(t)

	req := withVars(httptest.NewRequest(http.MethodGet, "/api/targets/abc", nil), map[string]string{"campaignID": "abc"})
	rec := httptest.NewRecorder()

	srv.GetTargetHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTargetHandler_NotFound(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectQuery("SELECT target_acos FROM acos_targets").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"target_acos"}))

	req := withVars(httptest.NewRequest(http.MethodGet, "/api/targets/42", nil), map[string]string{"campaignID": "42"})
	rec := httptest.NewRecorder()

	srv.GetTargetHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutTargetHandler(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectExec("INSERT INTO acos_targets").
		WithArgs(42, "de", 0.25).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"country":"de","target_acos":0.25}`
	req := withVars(httptest.NewRequest(http.MethodPut, "/api/targets/42", strings.NewReader(body)), map[string]string{"campaignID": "42"})
	rec := httptest.NewRecorder()

	srv.PutTargetHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutTargetHandler_RejectsNonPositive(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"country":"de","target_acos":0}`
	req := withVars(httptest.NewRequest(http.MethodPut, "/api/targets/42", strings.NewReader(body)), map[string]string{"campaignID": "42"})
	rec := httptest.NewRecorder()

	srv.PutTargetHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRecommendationsHandler_InvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/recommendations?limit=bogus", nil)
	rec := httptest.NewRecorder()

	srv.ListRecommendationsHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkImplementedHandler_NotFound(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectExec("UPDATE recommendations SET implemented_at").
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := withVars(httptest.NewRequest(http.MethodPost, "/api/recommendations/abc/implemented", nil), map[string]string{"id": "abc"})
	rec := httptest.NewRecorder()

	srv.MarkImplementedHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordChangeHandler_RejectsBadKind(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"entity":{"campaign_id":1,"targeting":"shoes","kind":"banner"},"new_value":1.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/changes", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.RecordChangeHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordChangeHandler_Persists(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectExec("INSERT INTO bid_changes").
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := `{"entity":{"campaign_id":1,"ad_group_id":10,"targeting":"shoes","kind":"keyword"},"previous_value":1.0,"new_value":1.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/changes", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.RecordChangeHandler(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerRunHandler_Conflict(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Engine = engine.NewEngine(
		history.NewMockSource(),
		&stubEngineStore{targets: map[int]float64{1: 0.20}},
		&stubLocker{acquireErr: db.ErrRunInProgress},
		observability.NewNoOpRegistry(),
		zap.NewNop(),
		config.Config{WorkerPoolSize: 1, RunLockTTL: time.Minute},
	)

	req := withVars(httptest.NewRequest(http.MethodPost, "/runs/de", nil), map[string]string{"country": "de"})
	rec := httptest.NewRecorder()

	srv.TriggerRunHandler(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLatestRunHandler_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	req := withVars(httptest.NewRequest(http.MethodGet, "/runs/de/latest", nil), map[string]string{"country": "de"})
	rec := httptest.NewRecorder()

	srv.LatestRunHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestRunHandler_ReturnsSummary(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Summaries = &stubSummaries{summary: models.RunSummary{RunID: "r1", Country: "de", Recommendations: 3}}

	req := withVars(httptest.NewRequest(http.MethodGet, "/runs/de/latest", nil), map[string]string{"country": "de"})
	rec := httptest.NewRecorder()

	srv.LatestRunHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"r1"`)
}
