// Package static serves files from a configured root directory (spec
// §4.9): traversal-safe path resolution, conditional requests, and an
// SPA fallback mode for client-side routers.
package static

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/nylon-dev/nylon/pkg/config"
)

// ErrTraversal is returned when the requested relative path would
// escape the configured root, even after following symlinks.
var ErrTraversal = errors.New("static: path escapes root")

// Resolve computes the on-disk path for a request's relative path
// against cfg.Root, rejecting traversal attempts and following
// symlinks safely (spec §4.9 steps 1-2). relativePath must already
// have the route's matched prefix stripped and must not be absolute.
func Resolve(cfg *config.StaticServiceConfig, relativePath string) (string, error) {
	for _, seg := range strings.Split(relativePath, "/") {
		if seg == ".." {
			return "", ErrTraversal
		}
	}
	if strings.HasPrefix(relativePath, "/") {
		relativePath = strings.TrimPrefix(relativePath, "/")
	}

	resolved, err := securejoin.SecureJoin(cfg.Root, relativePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTraversal, err)
	}
	return resolved, nil
}

// Serve implements spec §4.9's full algorithm: resolve, fall back to
// the index file for a directory or (when cfg.SPA is set) for a miss,
// then serve with content-type, Last-Modified, and conditional-request
// handling.
func Serve(w http.ResponseWriter, r *http.Request, cfg *config.StaticServiceConfig, relativePath string) {
	resolved, err := Resolve(cfg, relativePath)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(resolved)
	if err == nil && info.IsDir() {
		resolved = filepath.Join(resolved, indexName(cfg))
		info, err = os.Stat(resolved)
	}

	if err != nil || info.IsDir() {
		if cfg.SPA {
			serveFile(w, r, filepath.Join(cfg.Root, indexName(cfg)))
			return
		}
		http.NotFound(w, r)
		return
	}

	serveFileInfo(w, r, resolved, info)
}

func indexName(cfg *config.StaticServiceConfig) string {
	if cfg.Index == "" {
		return "index.html"
	}
	return cfg.Index
}

func serveFile(w http.ResponseWriter, r *http.Request, path string) {
	info, err := os.Stat(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	serveFileInfo(w, r, path, info)
}

// serveFileInfo writes the file body, honoring If-Modified-Since and
// If-None-Match against a weak ETag derived from size+mtime (spec
// §4.9 step 4).
func serveFileInfo(w http.ResponseWriter, r *http.Request, path string, info os.FileInfo) {
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	etag := weakETag(info)
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))

	if none := r.Header.Get("If-None-Match"); none != "" && none == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil && !info.ModTime().After(t) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}

	http.ServeContent(w, r, path, info.ModTime(), f)
}

func weakETag(info os.FileInfo) string {
	h := sha1.New()
	h.Write([]byte(strconv.FormatInt(info.Size(), 10)))
	h.Write([]byte(strconv.FormatInt(info.ModTime().UnixNano(), 10)))
	return `W/"` + hex.EncodeToString(h.Sum(nil))[:16] + `"`
}
