package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/hiddenhill/api/internal/db/repos"
	"github.com/hiddenhill/api/internal/testsupport"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	err    error
	taskID string
	calls  []string
	// onEnqueue runs before Enqueue returns, standing in for a worker that
	// picks the task up immediately.
	onEnqueue func(jobID string)
}

func (f *fakeDispatcher) Enqueue(_ context.Context, jobID, pubmedID string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, jobID+"|"+pubmedID)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.onEnqueue != nil {
		f.onEnqueue(jobID)
	}
	if f.taskID == "" {
		return "task-" + jobID, nil
	}
	return f.taskID, nil
}

var errBrokerDown = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

type fixture struct {
	db     *gorm.DB
	jobs   *JobService
	users  *repos.UserRepository
	videos *VideoService
	disp   *fakeDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testsupport.NewTestDB(t)
	jobs := NewJobService(repos.NewJobRepository(gdb), repos.NewVideoRepository(gdb))
	users := repos.NewUserRepository(gdb)
	disp := &fakeDispatcher{}
	return &fixture{
		db:     gdb,
		jobs:   jobs,
		users:  users,
		videos: NewVideoService(jobs, users, disp, nil),
		disp:   disp,
	}
}
