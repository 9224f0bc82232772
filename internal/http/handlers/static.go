package handlers

import (
	"io/fs"
	"net/http"

	"github.com/hongminglow/customer-be/internal/media"
)

// filesOnly hides directories so the file server never lists them.
type filesOnly struct {
	http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// staticPolicy stops uploaded documents such as SVG from running script.
const staticPolicy = "default-src 'none'; style-src 'unsafe-inline'; sandbox"

// RegisterStatic serves files below root under /public/.
func RegisterStatic(mux *http.ServeMux, root string) {
	files := http.FileServer(filesOnly{http.Dir(root)})
	mux.Handle("GET "+media.PublicPrefix, http.StripPrefix(media.PublicPrefix[:len(media.PublicPrefix)-1], locked(files)))
}

func locked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", staticPolicy)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}
