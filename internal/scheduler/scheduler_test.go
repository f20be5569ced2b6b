package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTaskRejectsDuplicates(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	task := TaskConfig{
		ID:   "test-task",
		Name: "Test task",
		Cron: "0 0 * * *",
		Func: func(ctx context.Context) error { return nil },
	}
	require.NoError(t, s.RegisterTask(task))
	assert.Error(t, s.RegisterTask(task))
}

func TestRegisterTaskRejectsBadCron(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	err = s.RegisterTask(TaskConfig{
		ID:   "bad-cron",
		Name: "Bad cron",
		Cron: "not a cron expression",
		Func: func(ctx context.Context) error { return nil },
	})
	assert.Error(t, err)
}

func TestRunNow(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	ran := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:   "run-now",
		Name: "Run now",
		Cron: "0 0 * * *",
		Func: func(ctx context.Context) error {
			close(ran)
			return nil
		},
	}))

	assert.Error(t, s.RunNow("missing"))
	require.NoError(t, s.RunNow("run-now"))
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestRunOnStart(t *testing.T) {
	s, err := New(zerolog.Nop())
	require.NoError(t, err)
	defer s.Stop()

	ran := make(chan struct{})
	require.NoError(t, s.RegisterTask(TaskConfig{
		ID:         "startup",
		Name:       "Startup",
		Cron:       "0 0 * * *",
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			close(ran)
			return nil
		},
	}))

	require.NoError(t, s.Start())
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("startup task did not run")
	}
}
