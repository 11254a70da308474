package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
	"github.com/naka-gawa/git-line-diffs/internal/gateway"
	"github.com/naka-gawa/git-line-diffs/internal/metrics"
	"github.com/naka-gawa/git-line-diffs/internal/report"
)

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Refresh(ctx context.Context, reason string) (domain.AggregateSnapshot, error) {
	args := m.Called(ctx, reason)
	return args.Get(0).(domain.AggregateSnapshot), args.Error(1)
}

func (m *mockRefresher) Current() domain.AggregateSnapshot {
	return m.Called().Get(0).(domain.AggregateSnapshot)
}

func (m *mockRefresher) InFlight() bool {
	return m.Called().Bool(0)
}

func sampleSnapshot() domain.AggregateSnapshot {
	s := domain.EmptySnapshot()
	s.Files = []domain.FileChange{
		{FileName: "small.go", Added: 1},
		{FileName: "big.go", Added: 600, Removed: 10},
	}
	s.Authors = []domain.AuthorChange{{AuthorName: "Alice", Added: 601, Removed: 10}}
	s.TotalFilesChanged = 2
	s.TotalAdded = 601
	s.TotalRemoved = 10
	s.PassID = "pass-1"
	return s
}

func newTestRouter(t *testing.T, r Refresher, root string, opener Opener) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		Refresher: r,
		Formatter: report.NewFormatter(0),
		Root:      root,
		Opener:    opener,
	})
}

func serve(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, &mockRefresher{}, "", nil)

	rec := serve(router, http.MethodGet, "/healthcheck", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatus(t *testing.T) {
	r := &mockRefresher{}
	r.On("Current").Return(sampleSnapshot())
	r.On("InFlight").Return(true)
	router := newTestRouter(t, r, "", nil)

	rec := serve(router, http.MethodGet, "/api/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Files Changed: 2 (+601 / -10)", got.Status)
	assert.True(t, got.InFlight)
	assert.Equal(t, "pass-1", got.PassID)
}

func TestSnapshot(t *testing.T) {
	r := &mockRefresher{}
	r.On("Current").Return(sampleSnapshot())
	router := newTestRouter(t, r, "", nil)

	rec := serve(router, http.MethodGet, "/api/snapshot", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.AggregateSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, sampleSnapshot().Files, got.Files)
	assert.Equal(t, 601, got.TotalAdded)
}

func TestReport(t *testing.T) {
	r := &mockRefresher{}
	r.On("Current").Return(sampleSnapshot())
	router := newTestRouter(t, r, "", nil)

	rec := serve(router, http.MethodGet, "/api/report", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got report.PresentationModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Files, 2)
	assert.Equal(t, "big.go", got.Files[0].FileName)
	assert.True(t, got.Files[0].HighImpact)
	assert.False(t, got.Files[1].HighImpact)
}

func TestRefresh(t *testing.T) {
	testCases := []struct {
		name              string
		err               error
		expectedCode      int
		errCode           string
		sourceUnavailable bool
	}{
		{name: "success", expectedCode: http.StatusOK},
		{name: "source unavailable keeps previous report", err: fmt.Errorf("no repo: %w", gateway.ErrSourceUnavailable), expectedCode: http.StatusOK, sourceUnavailable: true},
		{name: "cancelled", err: context.Canceled, expectedCode: http.StatusRequestTimeout, errCode: "cancelled"},
		{name: "unexpected", err: errors.New("boom"), expectedCode: http.StatusInternalServerError, errCode: "refresh_failed"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &mockRefresher{}
			r.On("Refresh", mock.Anything, "api").Return(sampleSnapshot(), tc.err)
			router := newTestRouter(t, r, "", nil)

			rec := serve(router, http.MethodPost, "/api/refresh", nil)

			assert.Equal(t, tc.expectedCode, rec.Code)
			if tc.errCode != "" {
				var env ErrorEnvelope
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
				assert.Equal(t, tc.errCode, env.Error.Code)
			} else {
				var got RefreshResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, "Files Changed: 2 (+601 / -10)", got.Status)
				assert.Len(t, got.Files, 2)
				assert.Equal(t, tc.sourceUnavailable, got.SourceUnavailable)
			}
			r.AssertExpectations(t)
		})
	}
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.go"), []byte("package a\n"), 0o600))

	testCases := []struct {
		name         string
		body         string
		expectedCode int
		expectOpened string
	}{
		{name: "opens existing file", body: `{"command":"openFile","filePath":"src/a.go"}`, expectedCode: http.StatusOK, expectOpened: filepath.Join(root, "src", "a.go")},
		{name: "missing file", body: `{"command":"openFile","filePath":"src/gone.go"}`, expectedCode: http.StatusNotFound},
		{name: "escapes root", body: `{"command":"openFile","filePath":"../etc/passwd"}`, expectedCode: http.StatusBadRequest},
		{name: "absolute path", body: `{"command":"openFile","filePath":"/etc/passwd"}`, expectedCode: http.StatusBadRequest},
		{name: "unknown command", body: `{"command":"deleteFile","filePath":"src/a.go"}`, expectedCode: http.StatusBadRequest},
		{name: "missing field", body: `{"command":"openFile"}`, expectedCode: http.StatusBadRequest},
		{name: "malformed json", body: `{`, expectedCode: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var opened []string
			opener := func(_ context.Context, p string) error {
				opened = append(opened, p)
				return nil
			}
			router := newTestRouter(t, &mockRefresher{}, root, opener)

			rec := serve(router, http.MethodPost, "/api/open", []byte(tc.body))

			assert.Equal(t, tc.expectedCode, rec.Code, rec.Body.String())
			if tc.expectOpened != "" {
				assert.Equal(t, []string{tc.expectOpened}, opened)
				var got OpenResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.True(t, got.Opened)
			} else {
				assert.Empty(t, opened)
			}
		})
	}
}

func TestOpen_WithoutOpenerResolvesOnly(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o600))
	router := newTestRouter(t, &mockRefresher{}, root, nil)

	rec := serve(router, http.MethodPost, "/api/open", []byte(`{"command":"openFile","filePath":"a.txt"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var got OpenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, filepath.Join(root, "a.txt"), got.Path)
	assert.False(t, got.Opened)
}

func TestOpen_OpenerFailure(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o600))
	router := newTestRouter(t, &mockRefresher{}, root, func(context.Context, string) error { return errors.New("no editor") })

	rec := serve(router, http.MethodPost, "/api/open", []byte(`{"command":"openFile","filePath":"a.txt"}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	collector.ObservePass(metrics.OutcomeOK, 0)
	router := NewRouter(RouterConfig{Refresher: &mockRefresher{}, Gatherer: reg})

	rec := serve(router, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "git_line_diffs_refresh_passes_total"))
}

func TestMetricsEndpoint_AbsentWithoutGatherer(t *testing.T) {
	router := newTestRouter(t, &mockRefresher{}, "", nil)

	rec := serve(router, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
