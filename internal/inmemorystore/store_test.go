package inmemorystore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	addr, err := nodeid.Parse("word_count.step[0].node[1]")
	require.NoError(t, err)

	status, err := s.GetStatus(ctx, *addr)
	require.NoError(t, err)
	assert.Equal(t, node.StatusPending, status, "unrecorded units are pending")
	output, err := s.GetOutput(ctx, *addr)
	require.NoError(t, err)
	assert.Nil(t, output)
	nodeErr, err := s.GetError(ctx, *addr)
	require.NoError(t, err)
	assert.NoError(t, nodeErr)

	require.NoError(t, s.SetStatus(ctx, *addr, node.StatusRunning))
	require.NoError(t, s.SetOutput(ctx, *addr, int64(42)))
	failure := errors.New("stage count failed")
	require.NoError(t, s.SetError(ctx, *addr, failure))
	require.NoError(t, s.SetStatus(ctx, *addr, node.StatusFailed))

	status, err = s.GetStatus(ctx, *addr)
	require.NoError(t, err)
	assert.Equal(t, node.StatusFailed, status)
	output, err = s.GetOutput(ctx, *addr)
	require.NoError(t, err)
	assert.Equal(t, int64(42), output)
	nodeErr, err = s.GetError(ctx, *addr)
	require.NoError(t, err)
	assert.ErrorIs(t, nodeErr, failure)
}

func TestConcurrentNodes(t *testing.T) {
	s := New()
	ctx := context.Background()
	step := nodeid.Flow("word count").Step(0)
	const nodes = 100

	var wg sync.WaitGroup
	for i := range nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := *step.Node(i)
			assert.NoError(t, s.SetStatus(ctx, addr, node.StatusCompleted))
			assert.NoError(t, s.SetOutput(ctx, addr, i))
			assert.NoError(t, s.SetError(ctx, addr, fmt.Errorf("node %d", i)))
		}()
	}
	wg.Wait()

	for i := range nodes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := *step.Node(i)
			output, err := s.GetOutput(ctx, addr)
			assert.NoError(t, err)
			assert.Equal(t, i, output)
			nodeErr, err := s.GetError(ctx, addr)
			assert.NoError(t, err)
			assert.EqualError(t, nodeErr, fmt.Sprintf("node %d", i))
		}()
	}
	wg.Wait()

	statuses, err := s.Statuses(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, nodes)
}

func TestStatusesSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()
	step := nodeid.Flow("word count").Step(0)

	require.NoError(t, s.SetStatus(ctx, *step, node.StatusRunning))
	require.NoError(t, s.SetStatus(ctx, *step.Node(0), node.StatusCompleted))
	require.NoError(t, s.SetStatus(ctx, *step.Node(1), node.StatusSkipped))

	got, err := s.Statuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]node.Status{
		"word_count.step[0]":         node.StatusRunning,
		"word_count.step[0].node[0]": node.StatusCompleted,
		"word_count.step[0].node[1]": node.StatusSkipped,
	}, got)

	got["word_count.step[0]"] = node.StatusFailed
	status, err := s.GetStatus(ctx, *step)
	require.NoError(t, err)
	assert.Equal(t, node.StatusRunning, status, "snapshot is a copy")
}
