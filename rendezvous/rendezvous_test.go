package rendezvous_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coevolve/coevolve/deme"
	"github.com/coevolve/coevolve/rendezvous"
)

func TestBuffer_AddSet_ConfigurationErrorOnZeroTrigger(t *testing.T) {
	b := rendezvous.New(0, func(context.Context, []*deme.EvaluationSet) error { return nil })
	err := b.AddSet(context.Background(), &deme.EvaluationSet{}, false)
	require.Error(t, err)
}

func TestBuffer_DrainsAndAcceptsNextCycle(t *testing.T) {
	var evaluated atomic.Int32
	b := rendezvous.New(1, func(context.Context, []*deme.EvaluationSet) error {
		evaluated.Add(1)
		return nil
	})
	ctx := context.Background()

	// First call hits trigger immediately and drains the buffer.
	require.NoError(t, b.AddSet(ctx, &deme.EvaluationSet{ProducerDemeID: 0}, false))
	assert.EqualValues(t, 1, evaluated.Load())

	// The buffer is empty again, so a second call starts a fresh
	// cycle and must succeed, not be rejected as oversubscribed.
	require.NoError(t, b.AddSet(ctx, &deme.EvaluationSet{ProducerDemeID: 0}, false))
	assert.EqualValues(t, 2, evaluated.Load())
}

func TestBuffer_TwoProducers_ExactlyOneEvaluates(t *testing.T) {
	var evaluated atomic.Int32
	var gotSets []*deme.EvaluationSet
	var mu sync.Mutex

	b := rendezvous.New(2, func(_ context.Context, sets []*deme.EvaluationSet) error {
		evaluated.Add(1)
		mu.Lock()
		gotSets = append(gotSets, sets...)
		mu.Unlock()
		for _, s := range sets {
			s.AssignFitness(float64(s.ProducerDemeID))
		}
		return nil
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	for id := 0; id < 2; id++ {
		id := id
		go func() {
			defer wg.Done()
			ind := deme.NewGeneric(id)
			set := &deme.EvaluationSet{Individuals: []deme.Individual{ind}, Assignment: 0, ProducerDemeID: id}
			assert.NoError(t, b.AddSet(ctx, set, true))
			assert.True(t, ind.FitnessValid())
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producers did not both return")
	}

	assert.EqualValues(t, 1, evaluated.Load())
	assert.Len(t, gotSets, 2)
}

func TestBuffer_NonBlockingAddSet_ReturnsImmediately(t *testing.T) {
	evaluated := make(chan struct{})
	b := rendezvous.New(2, func(context.Context, []*deme.EvaluationSet) error {
		close(evaluated)
		return nil
	})

	err := b.AddSet(context.Background(), &deme.EvaluationSet{ProducerDemeID: 0}, false)
	require.NoError(t, err)

	select {
	case <-evaluated:
		t.Fatal("evaluate should not have run with only 1 of 2 sets")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBuffer_AddSet_ContextCancel(t *testing.T) {
	b := rendezvous.New(2, func(context.Context, []*deme.EvaluationSet) error { return nil })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.AddSet(ctx, &deme.EvaluationSet{ProducerDemeID: 0}, true)
	require.Error(t, err)
}

func TestGet_SingletonFirstCallerWins(t *testing.T) {
	rendezvous.ResetSingleton()
	defer rendezvous.ResetSingleton()

	b1, err := rendezvous.Get(3, func(context.Context, []*deme.EvaluationSet) error { return nil })
	require.NoError(t, err)

	b2, err := rendezvous.Get(3, func(context.Context, []*deme.EvaluationSet) error { return nil })
	require.NoError(t, err)
	assert.Same(t, b1, b2)

	_, err = rendezvous.Get(4, func(context.Context, []*deme.EvaluationSet) error { return nil })
	require.Error(t, err)
}
