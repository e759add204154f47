package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	objects map[string][]byte
	deleted []string
	listed  []ObjectInfo
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Upload(_ context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	if f.listed != nil {
		return f.listed, nil
	}
	var infos []ObjectInfo
	for key, data := range f.objects {
		infos = append(infos, ObjectInfo{Key: key, Size: int64(len(data))})
	}
	return infos, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func writeTestDB(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("sqlite-payload-"+name), 0o644))
}

func TestCreateAndUploadArchivesDatabases(t *testing.T) {
	dataDir := t.TempDir()
	writeTestDB(t, dataDir, "signals.db")
	writeTestDB(t, dataDir, "client_data.db")
	// Non-database files stay out of the archive.
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "notes.txt"), []byte("x"), 0o644))

	store := newFakeObjectStore()
	service := NewBackupService(store, dataDir, 7, zerolog.Nop())

	require.NoError(t, service.CreateAndUpload(context.Background()))
	require.Len(t, store.objects, 1)

	var key string
	for k := range store.objects {
		key = k
	}
	assert.Contains(t, key, backupPrefix)
	assert.Contains(t, key, ".tar.gz")

	names := archiveEntryNames(t, store.objects[key])
	assert.ElementsMatch(t, []string{"signals.db", "client_data.db", "backup-metadata.json"}, names)
}

func TestCreateAndUploadFailsOnEmptyDataDir(t *testing.T) {
	service := NewBackupService(newFakeObjectStore(), t.TempDir(), 7, zerolog.Nop())
	assert.Error(t, service.CreateAndUpload(context.Background()))
}

func TestListBackupsSortsNewestFirst(t *testing.T) {
	store := newFakeObjectStore()
	store.listed = []ObjectInfo{
		{Key: "pelorus-backup-2025-06-01-050000.tar.gz", Size: 10},
		{Key: "pelorus-backup-2025-06-15-050000.tar.gz", Size: 20},
		{Key: "pelorus-backup-2025-06-08-050000.tar.gz", Size: 15},
		{Key: "unrelated-object.bin", Size: 1},
	}
	service := NewBackupService(store, t.TempDir(), 7, zerolog.Nop())

	backups, err := service.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, "pelorus-backup-2025-06-15-050000.tar.gz", backups[0].Filename)
	assert.Equal(t, "pelorus-backup-2025-06-01-050000.tar.gz", backups[2].Filename)
}

func TestPruneKeepsRetainCount(t *testing.T) {
	store := newFakeObjectStore()
	base := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		key := backupPrefix + base.AddDate(0, 0, i*7).Format(backupTimestamp) + ".tar.gz"
		store.objects[key] = []byte("archive")
	}
	service := NewBackupService(store, t.TempDir(), 4, zerolog.Nop())

	require.NoError(t, service.Prune(context.Background()))
	assert.Len(t, store.objects, 4)
	assert.Len(t, store.deleted, 2)

	// The two oldest are the ones removed.
	assert.Contains(t, store.deleted, backupPrefix+"2025-06-01-050000.tar.gz")
	assert.Contains(t, store.deleted, backupPrefix+"2025-06-08-050000.tar.gz")
}

func TestPruneEnforcesMinimumRetention(t *testing.T) {
	store := newFakeObjectStore()
	base := time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		key := backupPrefix + base.AddDate(0, 0, i).Format(backupTimestamp) + ".tar.gz"
		store.objects[key] = []byte("archive")
	}
	// Configured retention below the floor is raised to it.
	service := NewBackupService(store, t.TempDir(), 1, zerolog.Nop())

	require.NoError(t, service.Prune(context.Background()))
	assert.Len(t, store.objects, minBackupsToKeep)
}

func archiveEntryNames(t *testing.T, data []byte) []string {
	t.Helper()
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	var names []string
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, header.Name)
	}
	return names
}
