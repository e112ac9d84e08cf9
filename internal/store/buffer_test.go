package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuffer_RetainsNewestUpToCapacity(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(ctx, "", 3, nil, testLogger())

	for i := 0; i < 10; i++ {
		b.AppendUser(ctx, "1", "Ana", fmt.Sprintf("msg-%d", i))
	}

	snapshot := b.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, "msg-7", snapshot[0].Content)
	assert.Equal(t, "msg-8", snapshot[1].Content)
	assert.Equal(t, "msg-9", snapshot[2].Content)
}

func TestBuffer_TimestampsNonDecreasing(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(ctx, "", 10, nil, testLogger())

	b.AppendUser(ctx, "1", "Ana", "a")
	b.AppendAssistant(ctx, "b")
	b.AppendSystem(ctx, "c")

	snapshot := b.Snapshot()
	require.Len(t, snapshot, 3)
	assert.LessOrEqual(t, snapshot[0].Timestamp, snapshot[1].Timestamp)
	assert.LessOrEqual(t, snapshot[1].Timestamp, snapshot[2].Timestamp)
}

func TestBuffer_ExportAttributesUserMessages(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(ctx, "", 10, nil, testLogger())

	b.AppendUser(ctx, "1", "Ana", "oi")
	b.AppendAssistant(ctx, "olá")
	b.AppendSystem(ctx, "seja breve")

	exported := b.ExportForCompletion()
	require.Len(t, exported, 3)
	assert.Equal(t, "user", exported[0].Role)
	assert.Equal(t, "Ana: oi", exported[0].Content)
	assert.Equal(t, "assistant", exported[1].Role)
	assert.Equal(t, "olá", exported[1].Content)
	assert.Equal(t, "system", exported[2].Role)
	assert.Equal(t, "seja breve", exported[2].Content)
}

func TestBuffer_ExportFallsBackWhenUsernameMissing(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(ctx, "", 10, nil, testLogger())

	b.AppendUser(ctx, "1", "", "oi")

	exported := b.ExportForCompletion()
	require.Len(t, exported, 1)
	assert.Equal(t, "Usuário: oi", exported[0].Content)
}

func TestBuffer_SnapshotKeepsMetadata(t *testing.T) {
	ctx := context.Background()
	b := NewBuffer(ctx, "", 10, nil, testLogger())

	b.AppendUser(ctx, "42", "Ana", "oi")

	snapshot := b.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, RoleUser, snapshot[0].Role)
	assert.Equal(t, "oi", snapshot[0].Content)
	assert.Equal(t, "42", snapshot[0].UserID)
	assert.Equal(t, "Ana", snapshot[0].Username)
	assert.NotZero(t, snapshot[0].Timestamp)
}

func TestBuffer_MirrorsAppendsToLog(t *testing.T) {
	ctx := context.Background()
	log := testLog(t)
	b := NewBuffer(ctx, "c1", 10, log, testLogger())

	b.AppendUser(ctx, "1", "Ana", "oi")
	b.AppendAssistant(ctx, "olá")

	n, err := log.Count(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBuffer_LogKeptAtCapacity(t *testing.T) {
	ctx := context.Background()
	log := testLog(t)
	b := NewBuffer(ctx, "c1", 3, log, testLogger())

	for i := 0; i < 8; i++ {
		b.AppendUser(ctx, "1", "Ana", fmt.Sprintf("msg-%d", i))
	}

	n, err := log.Count(ctx, "c1")
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 3)
}

func TestBuffer_LoadsHistoryOnCreation(t *testing.T) {
	ctx := context.Background()
	log := testLog(t)

	first := NewBuffer(ctx, "c1", 10, log, testLogger())
	first.AppendUser(ctx, "1", "Ana", "oi")
	first.AppendAssistant(ctx, "olá")

	restored := NewBuffer(ctx, "c1", 10, log, testLogger())
	snapshot := restored.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "oi", snapshot[0].Content)
	assert.Equal(t, "olá", snapshot[1].Content)
}

func TestBuffer_ClearPurgesLog(t *testing.T) {
	ctx := context.Background()
	log := testLog(t)
	b := NewBuffer(ctx, "c1", 10, log, testLogger())

	b.AppendUser(ctx, "1", "Ana", "oi")
	b.Clear(ctx)

	assert.Zero(t, b.Len())

	n, err := log.Count(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBuffer_EphemeralNeverTouchesLog(t *testing.T) {
	ctx := context.Background()
	log := testLog(t)

	// Empty channel ID marks the buffer ephemeral even with a log attached.
	b := NewBuffer(ctx, "", 10, log, testLogger())
	b.AppendUser(ctx, "1", "Ana", "oi")
	b.Clear(ctx)

	n, err := log.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}
