package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hiddenhill/api/internal/db/repos"
	"github.com/hiddenhill/api/internal/service"
	"github.com/hiddenhill/api/internal/testsupport"
)

type stubDispatcher struct {
	err   error
	calls int
}

func (d *stubDispatcher) Enqueue(_ context.Context, jobID, _ string) (string, error) {
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	return "task-" + jobID, nil
}

var errRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

type testEnv struct {
	app  *fiber.App
	db   *gorm.DB
	jobs *service.JobService
	disp *stubDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := testsupport.NewTestDB(t)
	jobs := service.NewJobService(repos.NewJobRepository(gdb), repos.NewVideoRepository(gdb))
	disp := &stubDispatcher{}
	videos := service.NewVideoService(jobs, repos.NewUserRepository(gdb), disp, nil)

	cfg := testsupport.NewConfig(t)
	app := NewApp(Routes{
		Video:    NewVideoHandler(videos, NewValidator()),
		Health:   NewHealthHandler(nil, nil, cfg.Queue.ProbeTimeout),
		LogLevel: cfg.Server.LogLevel,
	})
	return &testEnv{app: app, db: gdb, jobs: jobs, disp: disp}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}
