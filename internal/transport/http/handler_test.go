package httptransport

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks LogReader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"skrining/internal/domain"
	"skrining/internal/logstore"
	"skrining/internal/platform/metrics"
	"skrining/internal/transport/http/mocks"
	"skrining/pkg/platform/sentinel"
)

// HandlerSuite exercises the status server through its router.
//
// Justification for unit tests: query parsing, payload stripping and error
// translation are the only logic here; the store is mocked.
type HandlerSuite struct {
	suite.Suite
	logs   *mocks.MockLogReader
	router http.Handler
	t0     time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.logs = mocks.NewMockLogReader(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveOutcome("success", time.Second)

	s.router = NewRouter(NewHandler(s.logs, logger), reg, logger)
	s.t0 = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
}

func (s *HandlerSuite) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func (s *HandlerSuite) entries() []domain.LogEntry {
	return []domain.LogEntry{
		{ID: "1", Status: domain.LogStatusSuccess, Registered: true, Timestamp: s.t0, Payload: &domain.NormalizedEntity{NIK: "1", Name: "Jane"}},
		{ID: "2", Status: domain.LogStatusError, Reason: "kuota_habis", Timestamp: s.t0.Add(time.Hour)},
		{ID: "3", Status: domain.LogStatusLocked, Timestamp: s.t0.Add(2 * time.Hour)},
	}
}

// serveFiltered answers GetLogs by applying the handler's predicate.
func (s *HandlerSuite) serveFiltered() {
	s.logs.EXPECT().GetLogs(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, pred logstore.Predicate) ([]domain.LogEntry, error) {
			return logstore.Filter(s.entries(), pred), nil
		})
}

func (s *HandlerSuite) decodeList(w *httptest.ResponseRecorder) ListResponse {
	var resp ListResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// =============================================================================
// Health and metrics
// =============================================================================

func (s *HandlerSuite) TestHealthz() {
	w := s.get("/healthz")
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, w.Body.String())
	s.NotEmpty(w.Header().Get("X-Request-ID"))
}

func (s *HandlerSuite) TestMetricsExposed() {
	w := s.get("/metrics")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `skrining_outcomes_total{kind="success"} 1`)
}

// =============================================================================
// GET /logs
// =============================================================================

func (s *HandlerSuite) TestListStripsPayloadByDefault() {
	s.serveFiltered()

	resp := s.decodeList(s.get("/logs"))
	s.Equal(3, resp.Count)
	s.Nil(resp.Entries[0].Payload)
}

func (s *HandlerSuite) TestListWithPayload() {
	s.serveFiltered()

	resp := s.decodeList(s.get("/logs?payload=true"))
	s.Require().NotNil(resp.Entries[0].Payload)
	s.Equal("Jane", resp.Entries[0].Payload.Name)
}

func (s *HandlerSuite) TestListFiltersByStatusAndSince() {
	s.serveFiltered()

	since := s.t0.Add(30 * time.Minute).Format(time.RFC3339)
	resp := s.decodeList(s.get("/logs?status=error,locked,success&since=" + since))
	s.Equal(2, resp.Count)
	s.Equal("2", resp.Entries[0].ID)
	s.Equal("3", resp.Entries[1].ID)
}

func (s *HandlerSuite) TestListLimitKeepsNewest() {
	s.serveFiltered()

	resp := s.decodeList(s.get("/logs?limit=1"))
	s.Require().Len(resp.Entries, 1)
	s.Equal("3", resp.Entries[0].ID)
}

func (s *HandlerSuite) TestListEmptyIsArray() {
	s.logs.EXPECT().GetLogs(gomock.Any(), gomock.Any()).Return(nil, nil)

	w := s.get("/logs")
	s.JSONEq(`{"count":0,"entries":[]}`, w.Body.String())
}

func (s *HandlerSuite) TestListRejectsBadQuery() {
	for _, q := range []string{"status=pending", "since=yesterday", "limit=-1", "payload=maybe"} {
		w := s.get("/logs?" + q)
		s.Equal(http.StatusBadRequest, w.Code, q)

		var body map[string]string
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
		s.Equal("invalid_input", body["error"], q)
	}
}

func (s *HandlerSuite) TestListStoreFailureIsInternal() {
	s.logs.EXPECT().GetLogs(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk on fire"))

	w := s.get("/logs")
	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "disk on fire")
}

// =============================================================================
// GET /logs/{nik}
// =============================================================================

func (s *HandlerSuite) TestGetLog() {
	entry := s.entries()[1]
	s.logs.EXPECT().GetLogByID(gomock.Any(), "2").Return(&entry, nil)

	w := s.get("/logs/2")
	s.Equal(http.StatusOK, w.Code)

	var got domain.LogEntry
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	s.Equal("kuota_habis", got.Reason)
}

func (s *HandlerSuite) TestGetLogMissing() {
	s.logs.EXPECT().GetLogByID(gomock.Any(), "9").Return(nil, fmt.Errorf("log 9: %w", sentinel.ErrNotFound))

	w := s.get("/logs/9")
	s.Equal(http.StatusNotFound, w.Code)
}
