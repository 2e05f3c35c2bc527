package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	started := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.Record(ctx, Run{
		ID: "run-1", Crate: "soc-pac", Version: "0.1.0", Destination: "/out/soc-pac",
		Outcome: "generated", Reason: "no persisted state", Fingerprint: "abc123",
		StartedAt: started, Duration: 1500 * time.Millisecond, Files: 6,
	}))
	require.NoError(t, s.Record(ctx, Run{
		ID: "run-2", Crate: "soc-pac", Version: "0.1.0", Destination: "/out/soc-pac",
		Outcome: "skipped", Reason: "inputs unchanged", StartedAt: started.Add(time.Minute),
	}))
	require.NoError(t, s.Record(ctx, Run{
		ID: "run-3", Crate: "other-pac", Version: "1.0.0", Destination: "/out/other",
		Outcome: "failed", Error: "svd2rust failed", StartedAt: started.Add(2 * time.Minute),
	}))

	all, err := s.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-3", all[0].ID)
	assert.Equal(t, "svd2rust failed", all[0].Error)

	soc, err := s.Recent(ctx, "soc-pac", 10)
	require.NoError(t, err)
	require.Len(t, soc, 2)
	first := soc[1]
	assert.Equal(t, "run-1", first.ID)
	assert.Equal(t, "generated", first.Outcome)
	assert.Equal(t, "abc123", first.Fingerprint)
	assert.Equal(t, 6, first.Files)
	assert.Equal(t, 1500*time.Millisecond, first.Duration)
	assert.True(t, first.StartedAt.Equal(started))

	limited, err := s.Recent(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecord_DuplicateID(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	run := Run{ID: "dup", Crate: "c", Version: "v", Destination: "d", Outcome: "generated", StartedAt: time.Now()}
	require.NoError(t, s.Record(ctx, run))
	assert.Error(t, s.Record(ctx, run))
}

func TestOpen_PersistsToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, Run{ID: "r", Crate: "c", Version: "v", Destination: "d", Outcome: "generated", StartedAt: time.Now()}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	runs, err := reopened.Recent(ctx, "c", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
