package messenger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/tracking"
)

type flakySender struct {
	calls    atomic.Int64
	failures int64
	err      error
}

func (f *flakySender) Send(context.Context, int64, string, []tracking.Action) error {
	if f.calls.Add(1) <= f.failures {
		return f.err
	}
	return nil
}

func TestRetrying_RecoversFromTransientFailure(t *testing.T) {
	t.Parallel()

	flaky := &flakySender{failures: 2, err: errors.New("flaky transport")}
	r := NewRetrying(flaky, zap.NewNop())
	r.baseDelay = 0

	err := r.Send(context.Background(), 42, "hello", nil)
	require.NoError(t, err)
	require.EqualValues(t, 3, flaky.calls.Load())
}

func TestRetrying_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	boom := errors.New("down")
	flaky := &flakySender{failures: 100, err: boom}
	r := NewRetrying(flaky, zap.NewNop())
	r.baseDelay = 0

	err := r.Send(context.Background(), 42, "hello", nil)
	require.ErrorIs(t, err, boom)
	require.EqualValues(t, 3, flaky.calls.Load())
}

func TestRetrying_DoesNotRetryCancelledContext(t *testing.T) {
	t.Parallel()

	flaky := &flakySender{failures: 100, err: context.Canceled}
	r := NewRetrying(flaky, zap.NewNop())

	err := r.Send(context.Background(), 42, "hello", nil)
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 1, flaky.calls.Load())
}

func TestMemory_RecordsMessages(t *testing.T) {
	t.Parallel()

	m := NewMemory(zap.NewNop())
	action := tracking.Action{
		Kind:   tracking.ActionShowOnMap,
		Target: tracking.Target{Kind: tracking.KindContainer, ID: "TKRU4471976"},
	}
	require.NoError(t, m.Send(context.Background(), 7, "status", []tracking.Action{action}))

	sent := m.Sent()
	require.Len(t, sent, 1)
	require.EqualValues(t, 7, sent[0].Subscriber)
	require.Equal(t, []tracking.Action{action}, sent[0].Actions)
}
