package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFile_MissingFileReadsEmpty(t *testing.T) {
	t.Parallel()

	f, err := NewFile[[]string](filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)

	doc, err := f.Load()
	require.NoError(t, err)
	require.Empty(t, doc)
}

func TestFile_MutateRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "history.json")
	f, err := NewFile[[]string](path)
	require.NoError(t, err)

	require.NoError(t, f.Mutate(func(doc map[string][]string) error {
		doc["42"] = append(doc["42"], "TKRU4471976")
		return nil
	}))

	// A second store over the same path sees the persisted document.
	f2, err := NewFile[[]string](path)
	require.NoError(t, err)
	v, ok, err := f2.Get("42")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"TKRU4471976"}, v)
}

func TestFile_CorruptDocumentReadsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	f, err := NewFile[string](path)
	require.NoError(t, err)
	doc, err := f.Load()
	require.NoError(t, err)
	require.Empty(t, doc)
}

func TestFile_ConcurrentMutationsDoNotLoseUpdates(t *testing.T) {
	t.Parallel()

	f, err := NewFile[int](filepath.Join(t.TempDir(), "counters.json"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.Mutate(func(doc map[string]int) error {
				doc["n"]++
				return nil
			})
		}()
	}
	wg.Wait()

	v, ok, err := f.Get("n")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 20, v)
}
