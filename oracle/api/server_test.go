package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"

	"github.com/GPTx-global/rofl-oracle/oracle/health"
	"github.com/GPTx-global/rofl-oracle/oracle/queue"
	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) LastObservation(ctx context.Context) (types.RemoteObservation, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.RemoteObservation), args.Error(1)
}

type APITestSuite struct {
	suite.Suite

	store   *queue.Store
	reader  *mockReader
	checker *health.Checker
	handler http.Handler
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (suite *APITestSuite) SetupTest() {
	var err error
	suite.store, err = queue.NewStore(queue.WithCapacity(3))
	suite.Require().NoError(err)
	suite.reader = new(mockReader)
	suite.checker = health.NewChecker(time.Minute, time.Second)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("oracled_queue_pending 0\n"))
	})
	router := NewRouter(suite.store, suite.reader, suite.checker, metrics)
	suite.handler = NewServer(":0", router).Handler
}

func (suite *APITestSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	suite.handler.ServeHTTP(rec, req)
	return rec
}

func (suite *APITestSuite) TestGreetingAndHealth() {
	rec := suite.do(http.MethodGet, "/", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.NotEmpty(gjson.Get(rec.Body.String(), "status").String())

	rec = suite.do(http.MethodGet, "/health", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.JSONEq(`{"status":"healthy"}`, rec.Body.String())
}

func (suite *APITestSuite) TestSubmit() {
	rec := suite.do(http.MethodPost, "/api/submit", `{"value": 42}`)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("Observation queued for submission", gjson.Get(rec.Body.String(), "message").String())
	suite.Equal(int64(1), gjson.Get(rec.Body.String(), "queueLength").Int())

	rec = suite.do(http.MethodPost, "/api/submit", `{"value": "340282366920938463463374607431768211455"}`)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal(int64(2), gjson.Get(rec.Body.String(), "queueLength").Int())

	suite.Equal(2, suite.store.Len())
	suite.Equal(types.NewValue(42), suite.store.Pending()[0])
}

func (suite *APITestSuite) TestSubmit_Rejected() {
	testCases := []struct {
		name string
		body string
	}{
		{"missing value", `{}`},
		{"null value", `{"value": null}`},
		{"negative", `{"value": -1}`},
		{"negative string", `{"value": "-5"}`},
		{"plus sign", `{"value": "+42"}`},
		{"fraction", `{"value": 1.5}`},
		{"not a number", `{"value": "abc"}`},
		{"too large", `{"value": 340282366920938463463374607431768211456}`},
		{"bad json", `{"value": `},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			rec := suite.do(http.MethodPost, "/api/submit", tc.body)
			suite.Equal(http.StatusBadRequest, rec.Code)
			suite.NotEmpty(gjson.Get(rec.Body.String(), "error").String())
		})
	}
	suite.Zero(suite.store.Len())
}

func (suite *APITestSuite) TestSubmit_QueueFull() {
	for i := 0; i < suite.store.Capacity(); i++ {
		suite.Equal(http.StatusOK, suite.do(http.MethodPost, "/api/submit", `{"value": 1}`).Code)
	}

	rec := suite.do(http.MethodPost, "/api/submit", `{"value": 1}`)
	suite.Equal(http.StatusServiceUnavailable, rec.Code)
	suite.Equal(suite.store.Capacity(), suite.store.Len())
}

func (suite *APITestSuite) TestLastObservationLocal() {
	rec := suite.do(http.MethodGet, "/api/last-observation-local", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("null", rec.Body.String())

	suite.store.RecordSuccess(types.NewValue(42))
	rec = suite.do(http.MethodGet, "/api/last-observation-local", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("42", rec.Body.String())
}

func (suite *APITestSuite) TestLastObservation() {
	suite.reader.On("LastObservation", mock.Anything).
		Return(types.RemoteObservation{Value: types.NewValue(42), Block: types.NewValue(1000)}, nil).Once()

	rec := suite.do(http.MethodGet, "/api/last-observation", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.JSONEq(`{"value":42,"block":1000}`, rec.Body.String())

	suite.reader.On("LastObservation", mock.Anything).
		Return(types.RemoteObservation{}, errorsmod.Wrap(types.ErrTransport, "dial unix")).Once()

	rec = suite.do(http.MethodGet, "/api/last-observation", "")
	suite.Equal(http.StatusInternalServerError, rec.Code)
	suite.Equal("Failed to get last observation", gjson.Get(rec.Body.String(), "error").String())
	suite.reader.AssertExpectations(suite.T())
}

func (suite *APITestSuite) TestDelete() {
	rec := suite.do(http.MethodGet, "/api/delete", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("null", rec.Body.String())

	_, _ = suite.store.Enqueue(types.NewValue(1))
	_, _ = suite.store.Enqueue(types.NewValue(2))

	rec = suite.do(http.MethodDelete, "/api/delete", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("2", rec.Body.String())

	rec = suite.do(http.MethodGet, "/api/delete", "")
	suite.Equal("1", rec.Body.String())
	suite.True(suite.store.IsEmpty())
	suite.Zero(suite.store.HistoryLen())
}

func (suite *APITestSuite) TestStatus() {
	suite.checker.AddCheck(health.NewFuncCheck("signer", func(context.Context) error {
		return errorsmod.Wrap(types.ErrTransport, "no socket")
	}))
	suite.checker.RunChecks(context.Background())
	_, _ = suite.store.Enqueue(types.NewValue(5))

	rec := suite.do(http.MethodGet, "/status", "")
	suite.Equal(http.StatusOK, rec.Code)

	body := rec.Body.String()
	suite.False(gjson.Get(body, "healthy").Bool())
	suite.Equal(int64(1), gjson.Get(body, "queue.pending").Int())
	suite.Equal(int64(3), gjson.Get(body, "queue.capacity").Int())
	suite.False(gjson.Get(body, "checks.signer.healthy").Bool())
	suite.Contains(gjson.Get(body, "checks.signer.lastError").String(), "no socket")
}

func (suite *APITestSuite) TestMetricsAndRouting() {
	rec := suite.do(http.MethodGet, "/metrics", "")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), "oracled_queue_pending")

	suite.Equal(http.StatusNotFound, suite.do(http.MethodGet, "/nope", "").Code)
	suite.Equal(http.StatusMethodNotAllowed, suite.do(http.MethodGet, "/api/submit", "").Code)
}

func (suite *APITestSuite) TestCORS() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")

	rec := httptest.NewRecorder()
	suite.handler.ServeHTTP(rec, req)
	suite.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
}
