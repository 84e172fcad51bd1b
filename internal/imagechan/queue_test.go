package imagechan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/byod/internal/model"
)

func payload(s string) model.Payload {
	return model.Payload{Data: []byte(s), SourceURL: "http://x/" + s}
}

func TestQueue_FIFO(t *testing.T) {
	q := New(4, Block)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, payload("p1")))
	require.NoError(t, q.Send(ctx, payload("p2")))

	p, ok := q.TryRecv()
	require.True(t, ok)
	assert.Equal(t, "p1", string(p.Data))

	p, ok = q.TryRecv()
	require.True(t, ok)
	assert.Equal(t, "p2", string(p.Data))
}

func TestQueue_TryRecvEmptyDoesNotBlock(t *testing.T) {
	q := New(1, Block)

	done := make(chan struct{})
	go func() {
		_, ok := q.TryRecv()
		assert.False(t, ok)
		_, _, ok = q.DrainLatest()
		assert.False(t, ok)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receive on empty queue blocked")
	}
}

func TestQueue_DrainLatestSupersedesBacklog(t *testing.T) {
	q := New(3, Block)
	ctx := context.Background()
	for _, s := range []string{"p1", "p2", "p3"} {
		require.NoError(t, q.Send(ctx, payload(s)))
	}

	latest, superseded, ok := q.DrainLatest()
	require.True(t, ok)
	assert.Equal(t, "p3", string(latest.Data))
	assert.Equal(t, 2, superseded)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_BlockPolicyAppliesBackpressure(t *testing.T) {
	q := New(1, Block)
	require.NoError(t, q.Send(context.Background(), payload("p1")))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := q.Send(ctx, payload("p2"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p, ok := q.TryRecv()
	require.True(t, ok)
	assert.Equal(t, "p1", string(p.Data), "blocked send must not displace queued payloads")
}

func TestQueue_BlockedSendResumesWhenDrained(t *testing.T) {
	q := New(1, Block)
	require.NoError(t, q.Send(context.Background(), payload("p1")))

	errCh := make(chan error, 1)
	go func() { errCh <- q.Send(context.Background(), payload("p2")) }()

	time.Sleep(10 * time.Millisecond)
	_, ok := q.TryRecv()
	require.True(t, ok)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send stayed blocked after room was made")
	}
}

func TestQueue_DropOldest(t *testing.T) {
	q := New(2, DropOldest)
	ctx := context.Background()
	for _, s := range []string{"p1", "p2", "p3"} {
		require.NoError(t, q.Send(ctx, payload(s)))
	}

	assert.Equal(t, int64(1), q.Dropped())
	p, _ := q.TryRecv()
	assert.Equal(t, "p2", string(p.Data))
	p, _ = q.TryRecv()
	assert.Equal(t, "p3", string(p.Data))
}

func TestQueue_SendAfterCloseFails(t *testing.T) {
	q := New(1, Block)
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.ErrorIs(t, q.Send(context.Background(), payload("p1")), ErrClosed)
}

func TestQueue_CloseUnblocksPendingSend(t *testing.T) {
	q := New(1, Block)
	require.NoError(t, q.Send(context.Background(), payload("p1")))

	errCh := make(chan error, 1)
	go func() { errCh <- q.Send(context.Background(), payload("p2")) }()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not release the blocked sender")
	}
}

func TestParseOverflow(t *testing.T) {
	o, err := ParseOverflow("")
	require.NoError(t, err)
	assert.Equal(t, Block, o)

	o, err = ParseOverflow("drop-oldest")
	require.NoError(t, err)
	assert.Equal(t, DropOldest, o)

	_, err = ParseOverflow("spill")
	assert.Error(t, err)
}
