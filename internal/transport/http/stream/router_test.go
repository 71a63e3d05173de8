package streamhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orderflow/internal/pipeline"
	"orderflow/internal/store/journal"
	"orderflow/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, batch types.Batch) pipeline.Result {
	return m.Called(ctx, batch).Get(0).(pipeline.Result)
}

type MockReports struct {
	mock.Mock
}

func (m *MockReports) List(ctx context.Context, limit int) ([]journal.Entry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]journal.Entry)
	return entries, args.Error(1)
}

func (m *MockReports) Get(ctx context.Context, id string) (types.BatchReport, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.BatchReport), args.Bool(1), args.Error(2)
}

const insertEvent = `{"Records":[
  {"eventID":"1","eventName":"INSERT","dynamodb":{"NewImage":{
    "OrderId":{"S":"o1"},"Symbol":{"S":"VX"},"Venue":{"S":"IG"},"Side":{"S":"BUY"},"Size":{"N":"100"}}}},
  {"eventID":"2","eventName":"MODIFY","dynamodb":{"Keys":{"OrderId":{"S":"o0"}}}}
]}`

func newTestServer(t *testing.T, runner BatchRunner, reports ReportStore) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{Runner: runner, Reports: reports})
	require.NoError(t, err)
	return srv.Handler()
}

func perform(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresRunner(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	rec := perform(newTestServer(t, &MockRunner{}, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventRunsBatch(t *testing.T) {
	runner := &MockRunner{}
	report := types.BatchReport{BatchID: "b1", Venue: "IG", Outcomes: []types.ExecutionOutcome{
		{OrderID: "o1", Completed: true, Status: types.OutcomeExecuted, Reference: "D1"},
	}}
	runner.On("Run", mock.Anything, mock.MatchedBy(func(b types.Batch) bool {
		return len(b.Records) == 1 && b.Records[0].OrderID == "o1" && b.Ignored == 1
	})).Return(pipeline.Result{BatchID: "b1", State: pipeline.StateReported, Report: &report}).Once()

	rec := perform(newTestServer(t, runner, nil), http.MethodPost, "/api/stream/events", insertEvent)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.State)
	assert.Equal(t, "b1", resp.BatchID)
	assert.Equal(t, "reported", resp.BatchState)
	assert.Equal(t, 1, resp.Ignored)
	require.NotNil(t, resp.Counts)
	assert.Equal(t, 1, resp.Counts.Executed)
	runner.AssertExpectations(t)
}

func TestEventInvalidEnvelope(t *testing.T) {
	runner := &MockRunner{}
	rec := perform(newTestServer(t, runner, nil), http.MethodPost, "/api/stream/events", `{"nope":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"State":"ERROR"`)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestEventBatchFailure(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", mock.Anything, mock.Anything).Return(pipeline.Result{
		BatchID: "b2", State: pipeline.StateFailed,
		Err: &types.AuthError{Code: "error.security.invalid-details"},
	})

	rec := perform(newTestServer(t, runner, nil), http.MethodPost, "/api/stream/events", insertEvent)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ERROR", resp.State)
	assert.Equal(t, "failed", resp.BatchState)
	assert.Nil(t, resp.Counts)
}

func TestReportsEndpoints(t *testing.T) {
	reports := &MockReports{}
	reports.On("List", mock.Anything, 10).Return([]journal.Entry{{BatchID: "b1", Venue: "IG"}}, nil)
	reports.On("Get", mock.Anything, "b1").Return(types.BatchReport{BatchID: "b1", Venue: "IG"}, true, nil)
	reports.On("Get", mock.Anything, "missing").Return(types.BatchReport{}, false, nil)
	h := newTestServer(t, &MockRunner{}, reports)

	rec := perform(h, http.MethodGet, "/api/reports?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"batch_id":"b1"`)

	rec = perform(h, http.MethodGet, "/api/reports/b1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got types.BatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "b1", got.BatchID)

	rec = perform(h, http.MethodGet, "/api/reports/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = perform(h, http.MethodGet, "/api/reports?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportsDisabledWithoutJournal(t *testing.T) {
	rec := perform(newTestServer(t, &MockRunner{}, nil), http.MethodGet, "/api/reports", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func newBoundRouter(t *testing.T, runner BatchRunner, lifetime context.Context) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	r := NewRouter(runner, nil)
	r.Bind(lifetime)
	r.Register(engine.Group("/api"))
	return engine
}

func TestEventSurvivesClientDisconnect(t *testing.T) {
	runner := &MockRunner{}
	var runErr error
	runner.On("Run", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		runErr = args.Get(0).(context.Context).Err()
	}).Return(pipeline.Result{BatchID: "b1", State: pipeline.StateReported}).Once()

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/stream/events", strings.NewReader(insertEvent)).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	newBoundRouter(t, runner, context.Background()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, runErr)
	runner.AssertExpectations(t)
}

func TestEventCancelledWhenServerStops(t *testing.T) {
	runner := &MockRunner{}
	var runErr error
	runner.On("Run", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}).Return(pipeline.Result{BatchID: "b1", State: pipeline.StateFailed, Err: context.Canceled}).Once()

	lifetime, stop := context.WithCancel(context.Background())
	stop()
	rec := perform(newBoundRouter(t, runner, lifetime), http.MethodPost, "/api/stream/events", insertEvent)

	assert.ErrorIs(t, runErr, context.Canceled)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	runner.AssertExpectations(t)
}
