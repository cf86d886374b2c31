// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatbi/internal/model"
)

func pending(id string) model.Turn {
	return model.NewTurn(model.KindAgent, id, "query "+id, nil)
}

func finish(t model.Turn, status model.Status) model.Turn {
	t.Status = status
	return t
}

func TestAppend_RejectsWhileLastInProgress(t *testing.T) {
	s := NewStore(model.KindAgent)
	require.NoError(t, s.Append(pending("a")))

	err := s.Append(pending("b"))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, s.Len())

	// streaming is still non-terminal
	require.True(t, s.Replace("a", finish(pending("a"), model.StatusStreaming)))
	assert.ErrorIs(t, s.Append(pending("b")), ErrInvalidState)
}

func TestAppend_AfterTerminalSucceeds(t *testing.T) {
	for _, status := range []model.Status{model.StatusComplete, model.StatusFailed} {
		s := NewStore(model.KindAgent)
		require.NoError(t, s.Append(pending("a")))
		require.True(t, s.Replace("a", finish(pending("a"), status)))

		require.NoError(t, s.Append(pending("b")))
		last, ok := s.Last()
		require.True(t, ok)
		assert.Equal(t, "b", last.RequestID)
		assert.Equal(t, model.StatusPending, last.Status)
	}
}

func TestAppend_KindAndDuplicates(t *testing.T) {
	s := NewStore(model.KindAnalysis)

	wrong := model.NewTurn(model.KindAgent, "x", "q", nil)
	assert.ErrorIs(t, s.Append(wrong), ErrWrongKind)

	untagged := pending("a")
	untagged.Kind = ""
	require.NoError(t, s.Append(untagged))
	got, _ := s.Get("a")
	assert.Equal(t, model.KindAnalysis, got.Kind)

	s.Replace("a", finish(got, model.StatusComplete))
	dup := pending("a")
	dup.Kind = model.KindAnalysis
	assert.ErrorIs(t, s.Append(dup), ErrDuplicateTurn)
}

func TestReplace_MissingIDIsNoOp(t *testing.T) {
	s := NewStore(model.KindAgent)
	require.NoError(t, s.Append(pending("a")))
	before := s.Projection()

	assert.False(t, s.Replace("ghost", finish(pending("ghost"), model.StatusComplete)))
	assert.Equal(t, before, s.Projection())
}

func TestReplace_TerminalTurnIsImmutable(t *testing.T) {
	s := NewStore(model.KindAgent)
	require.NoError(t, s.Append(pending("a")))

	done := finish(pending("a"), model.StatusComplete)
	done.Content = "final"
	require.True(t, s.Replace("a", done))

	late := finish(pending("a"), model.StatusFailed)
	late.ErrorMessage = "late"
	assert.False(t, s.Replace("a", late))

	got, _ := s.Get("a")
	assert.Equal(t, "final", got.Content)
	assert.Equal(t, model.StatusComplete, got.Status)
}

func TestReplace_StatusNeverMovesBack(t *testing.T) {
	s := NewStore(model.KindAgent)
	require.NoError(t, s.Append(pending("a")))
	require.True(t, s.Replace("a", finish(pending("a"), model.StatusStreaming)))

	assert.False(t, s.Replace("a", pending("a")))
	got, _ := s.Get("a")
	assert.Equal(t, model.StatusStreaming, got.Status)
}

func TestReplace_KeepsIdentity(t *testing.T) {
	s := NewStore(model.KindAgent)
	orig := pending("a")
	require.NoError(t, s.Append(orig))

	next := finish(orig, model.StatusStreaming)
	next.Query = "rewritten"
	next.Kind = model.KindAnalysis
	require.True(t, s.Replace("a", next))

	got, _ := s.Get("a")
	assert.Equal(t, orig.Query, got.Query)
	assert.Equal(t, model.KindAgent, got.Kind)
	assert.Equal(t, orig.CreatedAt, got.CreatedAt)
}

func TestProjection_IsImmutableCopy(t *testing.T) {
	s := NewStore(model.KindAgent)
	require.NoError(t, s.Append(pending("a")))

	p := s.Projection()
	p.Turns[0].Content = "scribbled"

	got, _ := s.Get("a")
	assert.Empty(t, got.Content)
}

func TestProjection_ReflectsReplaceSynchronously(t *testing.T) {
	s := NewStore(model.KindAgent)
	require.NoError(t, s.Append(pending("a")))

	next := finish(pending("a"), model.StatusStreaming)
	next.Content = "partial"
	s.Replace("a", next)

	p := s.Projection()
	assert.Equal(t, "partial", p.Turns[0].Content)
	assert.True(t, p.Busy())
	assert.Equal(t, uint64(2), p.Seq)
}

func TestSubscribe_MutationOrder(t *testing.T) {
	s := NewStore(model.KindAgent)

	var seen []uint64
	var contents []string
	unsubscribe := s.Subscribe(func(p Projection) {
		seen = append(seen, p.Seq)
		if last, ok := p.Last(); ok {
			contents = append(contents, last.Content)
		}
	})

	require.NoError(t, s.Append(pending("a")))
	for _, text := range []string{"p", "pa", "par"} {
		next := finish(pending("a"), model.StatusStreaming)
		next.Content = text
		s.Replace("a", next)
	}
	s.Replace("ghost", pending("ghost")) // no-op, no notification

	assert.Equal(t, []uint64{1, 2, 3, 4}, seen)
	assert.Equal(t, []string{"", "p", "pa", "par"}, contents)

	unsubscribe()
	unsubscribe()
	s.Reset()
	assert.Len(t, seen, 4)
}

func TestSubscribe_ConcurrentMutationsNotifyInOrder(t *testing.T) {
	s := NewStore(model.KindAgent)
	require.NoError(t, s.Append(pending("a")))

	var mu sync.Mutex
	var seqs []uint64
	s.Subscribe(func(p Projection) {
		mu.Lock()
		seqs = append(seqs, p.Seq)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Replace("a", finish(pending("a"), model.StatusStreaming))
		}()
	}
	wg.Wait()

	require.Len(t, seqs, 20)
	for i := 1; i < len(seqs); i++ {
		assert.Less(t, seqs[i-1], seqs[i])
	}
}

func TestResetAndRestore(t *testing.T) {
	s := NewStore(model.KindAnalysis)
	history := []model.Turn{
		finish(pending("a"), model.StatusComplete),
		finish(pending("b"), model.StatusFailed),
	}

	s.Restore(history)
	require.Equal(t, 2, s.Len())
	assert.False(t, s.Busy())
	got, _ := s.Get("a")
	assert.Equal(t, model.KindAnalysis, got.Kind)

	s.Reset()
	assert.Zero(t, s.Len())
	_, ok := s.Last()
	assert.False(t, ok)
	assert.False(t, s.Busy())
}
