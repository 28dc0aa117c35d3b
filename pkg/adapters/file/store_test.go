package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/caseconf/pkg/adapters/file"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.SnapshotStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_YAMLContract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, file.New(t.TempDir(), file.WithFormat(file.FormatYAML)))
}

func TestFileStore_WritesReadableYAML(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir, file.WithFormat(file.FormatYAML))
	snap := domain.NewSnapshot("case-1", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		map[string]domain.Value{"COMP_ATM": "cam"})
	require.NoError(t, store.Save(context.Background(), snap))

	data, err := os.ReadFile(filepath.Join(dir, "case-1.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "COMP_ATM: cam")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	store := file.New(t.TempDir())
	err := store.Save(context.Background(), domain.NewSnapshot("../escape", time.Now(), nil))
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
