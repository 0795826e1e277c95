package index

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superinstance/prism/internal/prismerr"
)

func setupProject(t *testing.T) (root, indexDir string) {
	t.Helper()
	root = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {\n\tprintln(\"hello world\")\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "util.go"), []byte("package main\n\nfunc helper() int {\n\treturn 42\n}\n"), 0o644))
	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "thing.go"), []byte("package pkg\n\nconst Hello = \"world\"\n"), 0o644))

	indexDir = filepath.Join(root, ".prism")
	require.NoError(t, os.MkdirAll(indexDir, 0o755))
	return root, indexDir
}

func TestBuildFull_IndexesAllMatchingFiles(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)

	n, err := ix.BuildFull()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, ix.FileCount())
	assert.Equal(t, StateReady, ix.State())
	assert.NotEmpty(t, ix.IndexedAt())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)

	_, err := ix.BuildFull()
	require.NoError(t, err)
	require.NoError(t, ix.Save())

	loaded := New(root, indexDir)
	require.NoError(t, loaded.Load())
	assert.Equal(t, ix.FileCount(), loaded.FileCount())
	assert.Equal(t, StateReady, loaded.State())

	fr, err := loaded.GetFile("main.go")
	require.NoError(t, err)
	assert.Equal(t, "main.go", fr.Path)
	assert.Contains(t, fr.Content, "hello world")
}

func TestLoad_MissingSnapshotReturnsNotFound(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)

	err := ix.Load()
	require.Error(t, err)
	assert.Equal(t, prismerr.NotFound, prismerr.KindOf(err))
	assert.Equal(t, StateRebuilding, ix.State())
}

func TestGetFile_RejectsPathEscape(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	_, err = ix.GetFile("../../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, prismerr.PathUnsafe, prismerr.KindOf(err))
}

func TestGetFile_NotFound(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	_, err = ix.GetFile("does-not-exist.go")
	require.Error(t, err)
	assert.Equal(t, prismerr.NotFound, prismerr.KindOf(err))
}

func TestListFiles_FiltersByLanguage(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	all := ix.ListFiles("")
	assert.Len(t, all, 3)

	goOnly := ix.ListFiles("go")
	assert.Len(t, goOnly, 3)

	none := ix.ListFiles("python")
	assert.Empty(t, none)
}

func TestSearch_FindsMatchAndOrdersByScore(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	hits := ix.Search("hello", 10)
	require.NotEmpty(t, hits)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0)
	}
}

func TestSearch_FullScanFallbackForUnknownToken(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	hits := ix.Search("zzz_not_present_anywhere", 10)
	assert.Empty(t, hits)
}

func TestSearch_EmptyQueryReturnsNoHits(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	assert.Empty(t, ix.Search("", 10))
}

func TestUpsert_AddsNewFile(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.go"), []byte("package main\n\nfunc extra() {}\n"), 0o644))
	require.NoError(t, ix.Upsert("new.go"))

	assert.Equal(t, 4, ix.FileCount())
	fr, err := ix.GetFile("new.go")
	require.NoError(t, err)
	assert.Contains(t, fr.Content, "extra")
}

func TestUpsert_ReplacesExistingFile(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {\n\tprintln(\"goodbye\")\n}\n"), 0o644))
	require.NoError(t, ix.Upsert("main.go"))

	assert.Equal(t, 3, ix.FileCount())
	fr, err := ix.GetFile("main.go")
	require.NoError(t, err)
	assert.Contains(t, fr.Content, "goodbye")
	assert.NotContains(t, fr.Content, "hello world")

	assert.Empty(t, ix.Search("hello world", 10))
}

func TestUpsert_SkipsExcludedOrOversizeFiles(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "ignore.txt"), []byte("not included"), 0o644))
	require.NoError(t, ix.Upsert("ignore.txt"))
	assert.Equal(t, 3, ix.FileCount())
}

func TestRemove_DeletesFileAndPostings(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	require.NoError(t, ix.Remove("main.go"))
	assert.Equal(t, 2, ix.FileCount())

	_, err = ix.GetFile("main.go")
	require.Error(t, err)
	assert.Equal(t, prismerr.NotFound, prismerr.KindOf(err))

	assert.Empty(t, ix.Search("hello world", 10))
}

func TestRemove_NonexistentIsNoop(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	require.NoError(t, ix.Remove("never-existed.go"))
	assert.Equal(t, 3, ix.FileCount())
}

func TestBuildFull_CoalescesConcurrentRebuilds(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ix.BuildFull()
		}(i)
	}
	wg.Wait()

	var already int
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, prismerr.AlreadyRunning, prismerr.KindOf(err))
			already++
		}
	}
	assert.Less(t, already, 8, "at least one build should have won the race")
	assert.Equal(t, StateReady, ix.State())
}

func TestSearch_ConcurrentWithUpsert(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			ix.Search("hello", 10)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = ix.Upsert("main.go")
		}
	}()
	wg.Wait()

	assert.Equal(t, StateReady, ix.State())
}

func TestSave_AtomicUnderSimulatedCrash(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)
	require.NoError(t, ix.Save())

	snapshotPath := filepath.Join(indexDir, snapshotFileName)
	before, err := os.ReadFile(snapshotPath)
	require.NoError(t, err)

	// Simulate a crash mid-write: leave a stale temp file with garbage.
	tempPath := filepath.Join(indexDir, snapshotTempFileName)
	require.NoError(t, os.WriteFile(tempPath, []byte("{not valid json"), 0o644))

	loaded := New(root, indexDir)
	require.NoError(t, loaded.Load())

	after, err := os.ReadFile(snapshotPath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "canonical snapshot must be untouched by a stray temp file")
	assert.Equal(t, 3, loaded.FileCount())
}

func TestSave_ConcurrentCallsDoNotCorruptSnapshot(t *testing.T) {
	t.Parallel()
	root, indexDir := setupProject(t)
	ix := New(root, indexDir)
	_, err := ix.BuildFull()
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ix.Save()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	loaded := New(root, indexDir)
	require.NoError(t, loaded.Load())
	assert.Equal(t, 3, loaded.FileCount())
}
