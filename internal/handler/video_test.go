package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiddenhill/api/internal/model"
	"github.com/hiddenhill/api/internal/service"
	"github.com/hiddenhill/api/internal/worker"
	"github.com/hiddenhill/api/pkg/response"
)

// checkpointGenerator reads the job status over HTTP while the worker is in
// the middle of its run.
type checkpointGenerator struct {
	t     *testing.T
	env   *testEnv
	jobID string
	seen  *model.JobStatusResponse
}

func (g *checkpointGenerator) Generate(context.Context, string) (string, error) {
	resp, body := g.env.do(g.t, http.MethodGet, "/api/videos/"+g.jobID, nil)
	require.Equal(g.t, http.StatusOK, resp.StatusCode)
	status := decode[model.JobStatusResponse](g.t, body)
	g.seen = &status
	return "s3://fake/video.mp4", nil
}

func TestVideoLifecycleEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/videos/generate", map[string]string{"pubmed_id": "PMC10979640"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	created := decode[model.JobCreateResponse](t, body)
	assert.Equal(t, model.JobStatusQueued, created.Status)
	assert.NotEmpty(t, created.JobID)
	assert.NotEmpty(t, created.VideoID)

	resp, body = env.do(t, http.MethodGet, "/api/videos/"+created.JobID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[model.JobStatusResponse](t, body)
	assert.Equal(t, model.JobStatusQueued, status.Status)
	assert.Equal(t, 0, status.Progress)
	require.NotNil(t, status.Video)
	assert.Equal(t, "PMC10979640", status.Video.PubmedID)
	assert.Nil(t, status.Video.VideoURL)

	resp, _ = env.do(t, http.MethodGet, "/api/videos/"+created.JobID+"/download", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	gen := &checkpointGenerator{t: t, env: env, jobID: created.JobID}
	w := worker.NewVideoWorker(env.jobs, worker.NewProgressReporter(env.jobs, nil), gen)
	task, err := service.NewGenerateVideoTask(created.JobID, "PMC10979640")
	require.NoError(t, err)
	require.NoError(t, w.ProcessTask(context.Background(), task))

	require.NotNil(t, gen.seen)
	assert.Equal(t, model.JobStatusProcessing, gen.seen.Status)
	assert.Equal(t, 25, gen.seen.Progress)

	resp, body = env.do(t, http.MethodGet, "/api/videos/"+created.JobID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status = decode[model.JobStatusResponse](t, body)
	assert.Equal(t, model.JobStatusCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Video.VideoURL)
	assert.Equal(t, "s3://fake/video.mp4", *status.Video.VideoURL)
	assert.Equal(t, model.JobStatusCompleted, status.Video.Status)

	resp, _ = env.do(t, http.MethodGet, "/api/videos/"+created.JobID+"/download", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "s3://fake/video.mp4", resp.Header.Get("Location"))
}

func TestGenerateValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing pubmed id", map[string]string{}},
		{"too short", map[string]string{"pubmed_id": "PM"}},
		{"whitespace only", map[string]string{"pubmed_id": "      "}},
		{"bad email", map[string]string{"pubmed_id": "PMC1", "user_email": "not-an-email"}},
		{"malformed json", `{"pubmed_id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/videos/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
			envelope := decode[response.ErrorResponse](t, body)
			assert.Equal(t, response.CodeValidationError, envelope.Error.Code)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&model.Video{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, env.disp.calls)
}

func TestGenerateDispatchUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.disp.err = fmt.Errorf("%w: %v", service.ErrDispatchUnavailable, errRefused)

	resp, body := env.do(t, http.MethodPost, "/api/videos/generate", map[string]string{"pubmed_id": "PMC10979640"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	envelope := decode[response.ErrorResponse](t, body)
	assert.Equal(t, service.DispatchFailedMessage, envelope.Error.Message)
	assert.NotContains(t, string(body), "connection refused")

	var job model.Job
	require.NoError(t, env.db.Preload("Video").First(&job).Error)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.Video.ErrorMessage)
	assert.Equal(t, service.DispatchFailedMessage, *job.Video.ErrorMessage)
}

func TestUnknownJob(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/videos/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, response.CodeNotFound, decode[response.ErrorResponse](t, body).Error.Code)

	resp, _ = env.do(t, http.MethodGet, "/api/videos/does-not-exist/download", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDownloadFailedJobConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.disp.err = service.ErrDispatchUnavailable
	_, _ = env.do(t, http.MethodPost, "/api/videos/generate", map[string]string{"pubmed_id": "PMC1"})

	var job model.Job
	require.NoError(t, env.db.First(&job).Error)
	resp, _ := env.do(t, http.MethodGet, "/api/videos/"+job.ID+"/download", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestListVideos(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"PMC1", "PMC2", "PMC3"} {
		resp, _ := env.do(t, http.MethodPost, "/api/videos/generate", map[string]string{"pubmed_id": id})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodGet, "/api/videos", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[model.VideoListResponse](t, body)
	assert.Equal(t, 3, list.Count)

	resp, body = env.do(t, http.MethodGet, "/api/videos?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[model.VideoListResponse](t, body).Videos, 2)

	resp, _ = env.do(t, http.MethodGet, "/api/videos?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
