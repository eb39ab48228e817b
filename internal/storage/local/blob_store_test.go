package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/origin-crawler/internal/storage/local"
)

func TestNewCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "exports", "crawls")
	store, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)
	require.NotNil(t, store)

	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Empty(t, entries, "writability probe must be removed")
}

func TestNewRejectsBadBaseDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	for name, dir := range map[string]string{
		"empty": "  ",
		"file":  file,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := local.New(local.Config{BaseDir: dir})
			require.Error(t, err)
		})
	}
}

func TestNewRejectsReadOnlyDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	// #nosec G302 -- read-only directory for the test.
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() {
		// #nosec G302 -- restore so the temp dir can be removed.
		_ = os.Chmod(dir, 0o700)
	})

	_, err := local.New(local.Config{BaseDir: dir})
	require.ErrorContains(t, err, "not writable")
}

func TestPutObjectWritesCrawlExport(t *testing.T) {
	base := t.TempDir()
	store, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)

	path := "crawls/job-1/result.json"
	uri, err := store.PutObject(context.Background(), path, "application/json",
		strings.NewReader(`{"nodes":["http://a.test/"]}`))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(base, path), uri)

	// #nosec G304 -- reads from the test temp dir.
	got, err := os.ReadFile(filepath.Join(base, path))
	require.NoError(t, err)
	require.JSONEq(t, `{"nodes":["http://a.test/"]}`, string(got))

	// A re-run of the same job replaces the export.
	_, err = store.PutObject(context.Background(), path, "application/json", strings.NewReader(`{"nodes":[]}`))
	require.NoError(t, err)
	// #nosec G304 -- reads from the test temp dir.
	got, err = os.ReadFile(filepath.Join(base, path))
	require.NoError(t, err)
	require.JSONEq(t, `{"nodes":[]}`, string(got))
}

func TestPutObjectRejectsBadPaths(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	tests := map[string]string{
		"empty":          "",
		"traversal":      "../escape.json",
		"deep traversal": "crawls/../../escape.json",
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := store.PutObject(context.Background(), path, "application/json", strings.NewReader("{}"))
			require.Error(t, err)
		})
	}
}
