package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coevolve/coevolve/wire"
)

func TestHub_SendRecv_Basic(t *testing.T) {
	hub := NewHub(2)
	defer hub.Close()
	coord := hub.Endpoint(0)
	worker := hub.Endpoint(1)

	ctx := context.Background()
	require.NoError(t, coord.Send(ctx, 1, wire.TagMessageSize, wire.EncodeUint64(3)))

	got, err := worker.Recv(ctx, 0, wire.TagMessageSize)
	require.NoError(t, err)
	n, err := wire.DecodeUint64(got)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestHub_Recv_BlocksUntilSend(t *testing.T) {
	hub := NewHub(2)
	defer hub.Close()
	coord := hub.Endpoint(0)
	worker := hub.Endpoint(1)

	ctx := context.Background()
	done := make(chan []byte, 1)
	go func() {
		b, err := worker.Recv(ctx, 0, wire.TagFitness)
		require.NoError(t, err)
		done <- b
	}()

	select {
	case <-done:
		t.Fatal("Recv returned before Send")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, coord.Send(ctx, 1, wire.TagFitness, []byte("ok")))

	select {
	case b := <-done:
		assert.Equal(t, "ok", string(b))
	case <-time.After(time.Second):
		t.Fatal("Recv never unblocked")
	}
}

func TestHub_Recv_PinnedToSource(t *testing.T) {
	hub := NewHub(3)
	defer hub.Close()
	w1 := hub.Endpoint(1)
	w2 := hub.Endpoint(2)
	coord := hub.Endpoint(0)

	ctx := context.Background()
	require.NoError(t, w2.Send(ctx, 0, wire.TagFitness, []byte("from-2")))
	require.NoError(t, w1.Send(ctx, 0, wire.TagFitness, []byte("from-1")))

	got, err := coord.Recv(ctx, 1, wire.TagFitness)
	require.NoError(t, err)
	assert.Equal(t, "from-1", string(got))

	got, err = coord.Recv(ctx, 2, wire.TagFitness)
	require.NoError(t, err)
	assert.Equal(t, "from-2", string(got))
}

func TestHub_Recv_TagMismatchIsProtocolError(t *testing.T) {
	hub := NewHub(2)
	defer hub.Close()
	coord := hub.Endpoint(0)
	worker := hub.Endpoint(1)

	ctx := context.Background()
	require.NoError(t, coord.Send(ctx, 1, wire.TagIndividual, []byte("x")))

	_, err := worker.Recv(ctx, 0, wire.TagFitness)
	require.Error(t, err)
}

func TestHub_Probe_NonBlocking(t *testing.T) {
	hub := NewHub(2)
	defer hub.Close()
	coord := hub.Endpoint(0)
	worker := hub.Endpoint(1)

	ctx := context.Background()
	_, _, ok, err := coord.Probe(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, worker.Send(ctx, 0, wire.TagFitness, []byte("v")))

	source, tag, ok, err := coord.Probe(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, source)
	assert.Equal(t, wire.TagFitness, tag)

	// Probe must not consume; Recv still sees the message.
	got, err := coord.Recv(ctx, source, tag)
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestHub_Recv_ContextCancel(t *testing.T) {
	hub := NewHub(2)
	defer hub.Close()
	worker := hub.Endpoint(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := worker.Recv(ctx, 0, wire.TagFitness)
	require.Error(t, err)
}

func TestHub_RecvAny_UnknownTag(t *testing.T) {
	hub := NewHub(2)
	defer hub.Close()
	coord := hub.Endpoint(0)
	worker := hub.Endpoint(1)
	ctx := context.Background()

	require.NoError(t, coord.Send(ctx, 1, wire.TagEvolutionEnd, nil))

	tag, payload, err := worker.RecvAny(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, wire.TagEvolutionEnd, tag)
	assert.Empty(t, payload)
}

func TestHub_Ordering_PerSource(t *testing.T) {
	hub := NewHub(2)
	defer hub.Close()
	coord := hub.Endpoint(0)
	worker := hub.Endpoint(1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, coord.Send(ctx, 1, wire.TagMessageSize, wire.EncodeUint64(uint64(i))))
	}
	for i := 0; i < 5; i++ {
		b, err := worker.Recv(ctx, 0, wire.TagMessageSize)
		require.NoError(t, err)
		n, err := wire.DecodeUint64(b)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), n)
	}
}
