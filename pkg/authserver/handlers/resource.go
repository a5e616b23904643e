package handlers

import (
	"bytes"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/doorman-auth/doorman/pkg/authserver/resources"
	"github.com/doorman-auth/doorman/pkg/logger"
)

// indexNames are tried, in order, when a directory resource is requested.
var indexNames = []string{"index.html", "index.md"}

// extraTypes supplements the system MIME table for extensions it commonly
// lacks.
var extraTypes = map[string]string{
	".md":   "text/markdown; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".json": "application/json",
}

// Resource serves any path that is not an OAuth endpoint from the resource
// registry, enforcing the resource's scope.
func (h *Handler) Resource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		fail(w, http.StatusNotFound)
		return
	}

	p := principalFrom(r)

	m := h.Resources.Find(r.URL.Path, p.username())
	if m == nil {
		fail(w, http.StatusNotFound)
		return
	}
	res := m.Resource

	if res.Scope != resources.ScopePublic {
		if p == nil {
			h.unauthorized(w)
			return
		}
		if !p.hasScope(res.Scope) {
			logger.Infow("resource scope denied",
				"path", r.URL.Path, "scope", res.Scope, "user", p.username())
			fail(w, http.StatusForbidden)
			return
		}
		if res.Scope == resources.ScopeShared && res.Group >= 0 && !p.memberOf(res.Group) {
			logger.Infow("resource group denied",
				"path", r.URL.Path, "group", res.Group, "user", p.username())
			fail(w, http.StatusForbidden)
			return
		}
	}

	// Wildcard user directories fall back to filesystem permissions under
	// the authenticated identity.
	if res.Type == resources.TypeUserDirectory && !readableBy(m.Info, p.uid(), p.gids()) {
		fail(w, http.StatusForbidden)
		return
	}

	local, info := m.LocalPath, m.Info
	if info.IsDir() {
		if r.URL.Path[len(r.URL.Path)-1] != '/' {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		local, info = resolveIndex(local)
		if local == "" {
			fail(w, http.StatusNotFound)
			return
		}
	}

	name := local
	if name == "" {
		name = r.URL.Path
	}
	w.Header().Set("Content-Type", contentType(res, name))

	if local == "" {
		http.ServeContent(w, r, r.URL.Path, info.ModTime(), bytes.NewReader(res.Data))
		return
	}

	f, err := os.Open(local)
	if err != nil {
		logger.Errorw("failed to open resource", "path", local, "error", err)
		fail(w, http.StatusNotFound)
		return
	}
	defer f.Close()

	http.ServeContent(w, r, local, info.ModTime(), f)
}

// resolveIndex finds the index document inside a directory. Empty when the
// directory has none.
func resolveIndex(dir string) (string, fs.FileInfo) {
	for _, name := range indexNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, info
		}
	}
	return "", nil
}

// contentType picks the response MIME type: the configured one, then the
// extension, then a generic binary fallback.
func contentType(res *resources.Resource, name string) string {
	if res.ContentType != "" {
		return res.ContentType
	}

	ext := filepath.Ext(name)
	if ct, ok := extraTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// readableBy applies the classic owner/group/other permission bits to the
// identity. Non-POSIX systems report no ownership and pass.
func readableBy(info fs.FileInfo, uid int, gids []int) bool {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}

	perm := info.Mode().Perm()
	switch {
	case int(st.Uid) == uid:
		return perm&0o400 != 0
	case slices.Contains(gids, int(st.Gid)):
		return perm&0o040 != 0
	default:
		return perm&0o004 != 0
	}
}
