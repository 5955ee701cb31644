package logging

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/authforge/authcore/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leakTestService(t *testing.T, warning bool) *Service {
	t.Helper()
	cfg := &config.Logging{
		Level:             "debug",
		File:              filepath.Join(t.TempDir(), "logs", "app.log"),
		FileSizeMB:        1,
		ShutdownTimeoutMS: 1000,
		ShutdownWarning:   warning,
	}
	svc := &Service{Config: cfg}
	require.NoError(t, svc.Initialize())
	return svc
}

func closeWithin(t *testing.T, svc *Service, limit time.Duration) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- svc.Close() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(limit):
		t.Fatal("Close() took too long - WaitGroup may be unbalanced")
	}
}

// A nil zerolog event must still release the count taken for it.
func TestWaitGroupLeakWithNilEvent(t *testing.T) {
	svc := leakTestService(t, false)

	svc.activeOps.Add(1)
	svc.wg.Add(1)

	event := newTrackedLogEvent(nil, svc)
	require.NotNil(t, event)
	assert.Equal(t, int64(0), svc.ActiveOperations())

	closeWithin(t, svc, 2*time.Second)
}

func TestWaitGroupBalanceWithMultipleOperations(t *testing.T) {
	svc := leakTestService(t, false)

	svc.InfoWith().Msg("test 1")
	svc.ErrorWith().Msg("test 2")
	svc.WarnWith().Msg("test 3")
	svc.DebugWith().Msg("test 4")
	svc.TraceWith().Msg("below level")

	assert.Equal(t, int64(0), svc.ActiveOperations())
	closeWithin(t, svc, 100*time.Millisecond)
}

func TestWaitGroupBalanceWithChainedFields(t *testing.T) {
	svc := leakTestService(t, false)

	svc.InfoWith().Str("k", "v").Msg("chained str")
	svc.WarnWith().Int("n", 1).Bool("ok", true).Msg("chained int")
	svc.ErrorWith().Err(errors.New("boom")).Fields(map[string]interface{}{"a": 1}).Send()
	svc.InfoWith().Ctx(context.Background()).Request().Msgf("chained %s", "msgf")
	svc.InfoWith().Dict("d", func(e LogEvent) { e.Str("x", "y") }).Msg("chained dict")

	assert.Equal(t, int64(0), svc.ActiveOperations())

	start := time.Now()
	closeWithin(t, svc, 2*time.Second)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "Close must not wait for the shutdown timeout")
}

func TestWaitGroupWithContextLogger(t *testing.T) {
	svc := leakTestService(t, false)

	child := svc.With().Str("test", "context").Logger()
	child.InfoWith().Msg("test from context logger")
	child.TraceWith().Msg("below level")

	assert.Equal(t, int64(0), svc.ActiveOperations())
	closeWithin(t, svc, 100*time.Millisecond)
}

// Startup followed immediately by shutdown: nothing may be left in flight.
func TestWaitGroupNoLeakOnQuickShutdown(t *testing.T) {
	svc := leakTestService(t, true)

	svc.InfoWith().Str("dialect", "sqlite").Msg("applying migrations")
	svc.InfoWith().Msg("schema verified")
	time.Sleep(5 * time.Millisecond)

	require.NoError(t, svc.Close())
	assert.Equal(t, int64(0), svc.ActiveOperations())
}

func TestWaitGroupWithConcurrentLoggingAndShutdown(t *testing.T) {
	svc := leakTestService(t, true)

	stop := make(chan struct{})
	stopped := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		go func(id int) {
			defer func() { stopped <- struct{}{} }()
			for {
				select {
				case <-stop:
					return
				default:
					svc.InfoWith().Int("goroutine", id).Msg("concurrent log")
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	for i := 0; i < 5; i++ {
		<-stopped
	}

	closeWithin(t, svc, 3*time.Second)
	assert.Equal(t, int64(0), svc.ActiveOperations())
}

func TestNewTrackedLogEventWithNilService(t *testing.T) {
	event := newTrackedLogEvent(nil, nil)
	require.NotNil(t, event)
	event.Msg("test")
}
