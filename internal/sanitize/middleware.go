package sanitize

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hongminglow/customer-be/internal/http/respond"
)

const formType = "application/x-www-form-urlencoded"

// IsJSON reports whether mediaType is application/json or a +json variant.
func IsJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// Handles reports whether Body rewrites requests of mediaType. Handlers must
// refuse any other body they would parse.
func Handles(mediaType string) bool {
	return IsJSON(mediaType) || mediaType == formType
}

// Body sanitizes JSON and urlencoded request bodies before the rest of the
// chain runs. Other content types pass through unread. Malformed bodies are
// rejected with 400, bodies over limit with 413.
func Body(exempt KeySet, limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if !Handles(mediaType) {
				next.ServeHTTP(w, r)
				return
			}

			raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					respond.Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
					return
				}
				respond.Error(w, http.StatusBadRequest, "Could not read request body")
				return
			}

			out := raw
			if len(bytes.TrimSpace(raw)) > 0 {
				if IsJSON(mediaType) {
					v, err := Parse(raw)
					if err != nil {
						respond.Error(w, http.StatusBadRequest, "Invalid JSON payload")
						return
					}
					if out, err = Sanitize(v, exempt).MarshalJSON(); err != nil {
						respond.Error(w, http.StatusBadRequest, "Invalid JSON payload")
						return
					}
				} else {
					values, err := url.ParseQuery(string(raw))
					if err != nil {
						respond.Error(w, http.StatusBadRequest, "Invalid form payload")
						return
					}
					out = []byte(Form(values, exempt).Encode())
				}
			}

			r.Body = io.NopCloser(bytes.NewReader(out))
			r.ContentLength = int64(len(out))
			r.Header.Set("Content-Length", strconv.Itoa(len(out)))
			next.ServeHTTP(w, r)
		})
	}
}

// PathValues cleans the named path parameters. It must wrap a handler
// registered on a ServeMux pattern so the values are already populated.
func PathValues(exempt KeySet, names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, name := range names {
				if exempt.Has(name) {
					continue
				}
				if v := r.PathValue(name); v != "" {
					r.SetPathValue(name, Clean(v))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
