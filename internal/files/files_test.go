package files

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransfer_ServesExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644))

	w := httptest.NewRecorder()
	Transfer(w, "index.html", dir)

	require.Equal(t, 200, w.Code)
	require.Equal(t, "text/html", w.Header().Get("Content-Type"))
	require.Equal(t, "<h1>hi</h1>", w.Body.String())
}

func TestTransfer_UnknownExtensionFallsBackToPlainText(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin"), []byte("raw"), 0o644))

	w := httptest.NewRecorder()
	Transfer(w, "data.bin", dir)

	require.Equal(t, 200, w.Code)
	require.Equal(t, "text/plain", w.Header().Get("Content-Type"))
}

func TestTransfer_MissingFileIs404(t *testing.T) {
	dir := t.TempDir()
	w := httptest.NewRecorder()
	Transfer(w, "missing.html", dir)
	require.Equal(t, 404, w.Code)
}

func TestTransfer_DirectoryIs404(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	w := httptest.NewRecorder()
	Transfer(w, "sub", dir)
	require.Equal(t, 404, w.Code)
}

func TestTransfer_PathTraversalIsRejected(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("nope"), 0o644))

	rel, err := filepath.Rel(dir, filepath.Join(outside, "secret.txt"))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	Transfer(w, rel, dir)
	require.Equal(t, 404, w.Code)
}

func TestTransfer_SymlinkEscapeIsRejected(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(target, []byte("nope"), 0o644))

	link := filepath.Join(dir, "escape")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	w := httptest.NewRecorder()
	Transfer(w, "escape", dir)
	require.Equal(t, 404, w.Code)
}
