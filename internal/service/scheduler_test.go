package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	connectErr   error
	alive        atomic.Bool
	disconnected atomic.Bool
}

func (g *fakeGateway) Connect(ctx context.Context) error {
	if g.connectErr != nil {
		return g.connectErr
	}
	g.alive.Store(true)
	return nil
}

func (g *fakeGateway) OnEvent(fn func(domain.Event)) {}

func (g *fakeGateway) Alive() bool { return g.alive.Load() }

func (g *fakeGateway) Latency() time.Duration { return 42 * time.Millisecond }

func (g *fakeGateway) BotUser() string { return "garagebot#0001" }

func (g *fakeGateway) Disconnect(ctx context.Context) error {
	g.alive.Store(false)
	g.disconnected.Store(true)
	return nil
}

func TestScheduler_StartRunsJobsImmediately(t *testing.T) {
	gw := &fakeGateway{}
	s := NewScheduler(gw, testLogger())

	var runs atomic.Int32
	require.NoError(t, s.RegisterJob("counter", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(time.Second)

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, StateRunning, s.State())
	assert.True(t, s.Healthy())
}

func TestScheduler_RegisterAfterStartRejected(t *testing.T) {
	gw := &fakeGateway{}
	s := NewScheduler(gw, testLogger())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(time.Second)

	err := s.RegisterJob("late", time.Minute, func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestScheduler_RegisterRejectsNonPositiveInterval(t *testing.T) {
	s := NewScheduler(&fakeGateway{}, testLogger())
	err := s.RegisterJob("bad", 0, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestScheduler_FailedJobStaysScheduled(t *testing.T) {
	gw := &fakeGateway{}
	s := NewScheduler(gw, testLogger())

	var runs atomic.Int32
	require.NoError(t, s.RegisterJob("flaky", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(time.Second)

	// keeps running despite every run failing
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "flaky", status[0].Name)
	assert.Equal(t, "boom", status[0].LastError)
}

func TestScheduler_PanicIsolated(t *testing.T) {
	gw := &fakeGateway{}
	s := NewScheduler(gw, testLogger())

	var healthyRuns atomic.Int32
	require.NoError(t, s.RegisterJob("panicky", 20*time.Millisecond, func(ctx context.Context) error {
		panic("job exploded")
	}))
	require.NoError(t, s.RegisterJob("steady", 20*time.Millisecond, func(ctx context.Context) error {
		healthyRuns.Add(1)
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(time.Second)

	// a panicking neighbor never takes down the healthy job
	assert.Eventually(t, func() bool { return healthyRuns.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateRunning, s.State())

	for _, st := range s.Status() {
		if st.Name == "panicky" {
			assert.Contains(t, st.LastError, "panicked")
		}
	}
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	gw := &fakeGateway{}
	s := NewScheduler(gw, testLogger())

	started := make(chan struct{})
	var sawCancel atomic.Bool
	require.NoError(t, s.RegisterJob("slow", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}))

	require.NoError(t, s.Start(context.Background()))
	<-started

	s.Stop(time.Second)
	assert.Equal(t, StateStopped, s.State())
	assert.True(t, sawCancel.Load())
	assert.True(t, gw.disconnected.Load())
	assert.False(t, s.Healthy())
}

func TestScheduler_StartFailsWhenGatewayDoes(t *testing.T) {
	gw := &fakeGateway{connectErr: domain.Fatal("connect", errors.New("bad token"))}
	s := NewScheduler(gw, testLogger())

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	assert.Equal(t, StateStopped, s.State())

	// a failed start leaves the scheduler restartable
	gw.connectErr = nil
	require.NoError(t, s.Start(context.Background()))
	s.Stop(time.Second)
}

func TestScheduler_DoubleStartRejected(t *testing.T) {
	s := NewScheduler(&fakeGateway{}, testLogger())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(time.Second)

	assert.ErrorIs(t, s.Start(context.Background()), domain.ErrInvalidState)
}

func TestScheduler_HealthyNeedsLiveGateway(t *testing.T) {
	gw := &fakeGateway{}
	s := NewScheduler(gw, testLogger())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(time.Second)

	require.True(t, s.Healthy())
	gw.alive.Store(false)
	assert.False(t, s.Healthy())
}
