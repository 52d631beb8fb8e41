package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/internal/infrastructure/buffer"
	"github.com/fastygo/taskplanner/repository"
	"github.com/fastygo/taskplanner/repository/memory"
)

type flakyEvents struct {
	repository.EventRepository
	mu    sync.Mutex
	fails int
}

func (f *flakyEvents) Append(ctx context.Context, e domain.Event) error {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return errors.New("unavailable")
	}
	f.mu.Unlock()
	return f.EventRepository.Append(ctx, e)
}

type staticHealth bool

func (s staticHealth) IsOnline() bool { return bool(s) }

func newOutbox(t *testing.T) *buffer.Outbox {
	t.Helper()
	o, err := buffer.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func event(id string) domain.Event {
	return domain.Event{ID: id, OwnerID: "u1", TaskID: "t1", Name: domain.EventTaskUpdated, CreatedAt: time.Now()}
}

func TestRecordThenDrain(t *testing.T) {
	ctx := context.Background()
	events := memory.NewEventRepository()
	ep := NewEventProcessor(newOutbox(t), events, nil, nil, ProcessorConfig{})

	require.NoError(t, ep.Record(ctx, event("e1")))
	require.NoError(t, ep.Record(ctx, event("e2")))
	assert.Equal(t, 2, ep.Size())

	n, err := ep.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, ep.Size())

	logged, err := events.ListByTask(ctx, "u1", "t1", 10)
	require.NoError(t, err)
	assert.Len(t, logged, 2)
}

func TestDrainRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	outbox := newOutbox(t)
	events := &flakyEvents{EventRepository: memory.NewEventRepository(), fails: 1}
	ep := NewEventProcessor(outbox, events, nil, nil, ProcessorConfig{MaxRetries: 2})
	require.NoError(t, ep.Record(ctx, event("e1")))

	n, err := ep.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, ep.Size())

	n, err = ep.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events.fails = 2
	require.NoError(t, ep.Record(ctx, event("e2")))
	_, _ = ep.Drain(ctx)
	_, _ = ep.Drain(ctx)
	assert.Zero(t, ep.Size())
	dead, err := outbox.DeadSize()
	require.NoError(t, err)
	assert.Equal(t, 1, dead)
}

func TestDrainSkipsWhenOffline(t *testing.T) {
	ctx := context.Background()
	ep := NewEventProcessor(newOutbox(t), memory.NewEventRepository(), staticHealth(false), nil, ProcessorConfig{})
	require.NoError(t, ep.Record(ctx, event("e1")))

	n, err := ep.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, ep.Size())
}

func TestRecordWritesThroughWithoutOutbox(t *testing.T) {
	ctx := context.Background()
	events := memory.NewEventRepository()
	ep := NewEventProcessor(nil, events, nil, nil, ProcessorConfig{})
	require.NoError(t, ep.Record(ctx, event("e1")))

	logged, err := events.ListByTask(ctx, "u1", "t1", 10)
	require.NoError(t, err)
	assert.Len(t, logged, 1)
	assert.NoError(t, ep.Stop(ctx))
}
