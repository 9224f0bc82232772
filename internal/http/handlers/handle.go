package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/customer-be/internal/apperr"
	"github.com/hongminglow/customer-be/internal/http/respond"
	"github.com/hongminglow/customer-be/internal/sanitize"
)

// handlerFunc is an endpoint that reports failures instead of writing them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle is the single place where errors become responses. Known error kinds
// keep their message and status; everything else is logged and hidden behind a 500.
func handle(logger *zap.Logger, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		if appErr, ok := apperr.As(err); ok {
			respond.Error(w, appErr.Kind.Status(), appErr.Message)
			return
		}
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respond.Error(w, http.StatusInternalServerError, "Server Error")
	})
}

// decode reads a JSON or urlencoded body into dst. An empty body leaves dst
// untouched. Bodies of any other media type never reach the sanitizer, so
// they are refused.
func decode(r *http.Request, dst any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/x-www-form-urlencoded":
		return decodeForm(r, dst)
	case !sanitize.Handles(mediaType):
		if r.Body == nil {
			return nil
		}
		var first [1]byte
		if n, _ := io.ReadFull(r.Body, first[:]); n == 0 {
			return nil
		}
		return apperr.Validation("Unsupported content type")
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("Request body too large")
		}
		return apperr.Wrap(apperr.KindValidation, "Invalid JSON payload", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid JSON payload", err)
	}
	return nil
}

// decodeForm maps single-valued form fields onto the JSON names of dst.
func decodeForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid form payload", err)
	}
	fields := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		fields[key] = r.PostForm.Get(key)
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid form payload", err)
	}
	return nil
}
