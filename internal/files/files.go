// Package files implements the Serve action: respond to a request with
// the contents of a file rooted at a configured directory, refusing any
// request whose resolved path would escape that directory.
package files

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// contentTypes maps a lowercased file extension to the Content-Type
// served for it. Anything else falls back to text/plain, matching the
// original project's deliberately small table — rxh is not a general
// MIME-sniffing web server.
var contentTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Transfer writes the file at root/requestPath to w, or a 404 if the
// path doesn't resolve to a regular file inside root. requestPath is the
// request's URL path with its leading slash removed, exactly as named in
// the file the response is served from.
func Transfer(w http.ResponseWriter, requestPath, root string) {
	resolved, ok := resolve(requestPath, root)
	if !ok {
		http.NotFound(w, nil)
		return
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, nil)
		return
	}

	body, err := os.ReadFile(resolved)
	if err != nil {
		http.NotFound(w, nil)
		return
	}

	w.Header().Set("Content-Type", contentType(resolved))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// resolve joins requestPath onto root and confirms the result, with
// symlinks followed, still lives inside root. This is the path-traversal
// guard: "../../etc/passwd" or a symlink pointing outside root must never
// resolve to a real file.
func resolve(requestPath, root string) (string, bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", false
	}

	joined := filepath.Join(absRoot, requestPath)
	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		return "", false
	}

	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "text/plain"
}
