package task

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBackgroundTaskManager_RunsUntilCancelled(t *testing.T) {
	m := NewBackgroundTaskManager("test_", prometheus.NewRegistry())

	var runs int32
	m.Register("count", 5*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	m.Register("fail", time.Hour, func(ctx context.Context) error {
		return fmt.Errorf("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		assert.NoError(t, m.Run(ctx))
		close(done)
	}()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.failures.WithLabelValues("fail")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.failures.WithLabelValues("count")))
}

func TestBackgroundTaskManager_NoTasks(t *testing.T) {
	m := NewBackgroundTaskManager("test_", prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, m.Run(ctx))
}
