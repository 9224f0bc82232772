package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/customer-be/internal/apperr"
	"github.com/hongminglow/customer-be/internal/auth"
	"github.com/hongminglow/customer-be/internal/customer"
	"github.com/hongminglow/customer-be/internal/http/respond"
	"github.com/hongminglow/customer-be/internal/models/dto"
	"github.com/hongminglow/customer-be/internal/monitoring"
	"github.com/hongminglow/customer-be/internal/sanitize"
)

// BasePath prefixes every customer route.
const BasePath = "/api/v1/customers"

// pictureFields are the multipart field names accepted for an upload.
var pictureFields = []string{"profilePicture", "file"}

// multipartMemory is how much of a multipart body is buffered before spilling to disk.
const multipartMemory = 1 << 20

// CustomerOptions tunes CustomerHandler.
type CustomerOptions struct {
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// TrustProxy honours X-Forwarded-Proto when building public URLs.
	TrustProxy     bool
	UploadMaxBytes int64
	// LoginLimiter wraps the login route. Nil disables it.
	LoginLimiter func(http.Handler) http.Handler
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger
}

// CustomerHandler owns the customer account endpoints.
type CustomerHandler struct {
	svc    *customer.Service
	tokens *auth.TokenManager
	opts   CustomerOptions
	logger *zap.Logger
}

// NewCustomerHandler constructs the handler.
func NewCustomerHandler(svc *customer.Service, tokens *auth.TokenManager, opts CustomerOptions) *CustomerHandler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerHandler{svc: svc, tokens: tokens, opts: opts, logger: logger}
}

// Register attaches customer routes to the mux.
func (h *CustomerHandler) Register(mux *http.ServeMux) {
	mux.Handle("POST "+BasePath, handle(h.logger, h.handleRegister))
	mux.Handle("POST "+BasePath+"/logout", handle(h.logger, h.handleLogout))

	login := handle(h.logger, h.handleLogin)
	if h.opts.LoginLimiter != nil {
		login = h.opts.LoginLimiter(login)
	}
	mux.Handle("POST "+BasePath+"/login", login)

	mux.Handle("GET "+BasePath+"/{id}", h.protected(h.handleGet))
	mux.Handle("PUT "+BasePath+"/{id}", h.protected(h.handleUpdate))
	mux.Handle("DELETE "+BasePath+"/{id}", h.protected(h.handleDelete))
	mux.Handle("PUT "+BasePath+"/{id}/profile-picture", h.protected(h.handleUploadPicture))
}

// protected requires a session and sanitizes the id path value.
func (h *CustomerHandler) protected(fn handlerFunc) http.Handler {
	return h.tokens.RequireCustomer(sanitize.PathValues(sanitize.DefaultExempt, "id")(handle(h.logger, fn)))
}

func (h *CustomerHandler) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var req dto.RegisterRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	created, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	respond.Data(w, http.StatusCreated, created)
	return nil
}

func (h *CustomerHandler) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req dto.LoginRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperr.Is(err, apperr.KindAuthentication) {
			h.recordLogin(monitoring.LoginInvalid)
		}
		return err
	}
	h.recordLogin(monitoring.LoginSuccess)

	http.SetCookie(w, auth.SessionCookie(session.Token, session.ExpiresAt, h.opts.SecureCookies))
	respond.JSON(w, http.StatusOK, respond.Envelope{Success: true, Token: session.Token})
	return nil
}

func (h *CustomerHandler) handleLogout(w http.ResponseWriter, _ *http.Request) error {
	http.SetCookie(w, auth.ClearedCookie(h.opts.SecureCookies))
	respond.JSON(w, http.StatusOK, respond.Envelope{Success: true})
	return nil
}

func (h *CustomerHandler) handleGet(w http.ResponseWriter, r *http.Request) error {
	actor, _ := auth.CustomerID(r.Context())
	found, err := h.svc.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		return err
	}
	respond.Data(w, http.StatusOK, found)
	return nil
}

func (h *CustomerHandler) handleUpdate(w http.ResponseWriter, r *http.Request) error {
	var req dto.UpdateRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	actor, _ := auth.CustomerID(r.Context())
	updated, err := h.svc.Update(r.Context(), actor, r.PathValue("id"), customer.UpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	respond.Data(w, http.StatusOK, updated)
	return nil
}

func (h *CustomerHandler) handleDelete(w http.ResponseWriter, r *http.Request) error {
	actor, _ := auth.CustomerID(r.Context())
	if err := h.svc.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		return err
	}
	respond.Message(w, http.StatusOK, "Customer deleted successfully")
	return nil
}

func (h *CustomerHandler) handleUploadPicture(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.UploadMaxBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.recordUpload(monitoring.UploadRejected)
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return customer.TooLargeError(h.opts.UploadMaxBytes)
		case errors.Is(err, http.ErrNotMultipart):
			return apperr.Upload("No file uploaded")
		}
		return apperr.Wrap(apperr.KindUpload, "Invalid upload payload", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := formFile(r.MultipartForm, pictureFields...)
	if err != nil {
		h.recordUpload(monitoring.UploadRejected)
		return apperr.Wrap(apperr.KindUpload, "No file uploaded", err)
	}
	defer file.Close()

	actor, _ := auth.CustomerID(r.Context())
	rel, err := h.svc.UploadPicture(r.Context(), actor, r.PathValue("id"), customer.Upload{Body: file, Size: header.Size})
	if err != nil {
		if apperr.Is(err, apperr.KindUpload) {
			h.recordUpload(monitoring.UploadRejected)
		} else if _, known := apperr.As(err); !known {
			h.recordUpload(monitoring.UploadFailed)
		}
		return err
	}
	h.recordUpload(monitoring.UploadStored)

	respond.Data(w, http.StatusOK, dto.ProfilePictureResponse{
		ProfilePicture:    rel,
		ProfilePictureURL: publicURL(r, h.opts.TrustProxy, rel),
	})
	return nil
}

// formFile returns the first file sent under any of names.
func formFile(form *multipart.Form, names ...string) (multipart.File, *multipart.FileHeader, error) {
	for _, name := range names {
		if headers := form.File[name]; len(headers) > 0 {
			f, err := headers[0].Open()
			if err != nil {
				return nil, nil, err
			}
			return f, headers[0], nil
		}
	}
	return nil, nil, http.ErrMissingFile
}

// publicURL makes rel absolute against the host the request was sent to.
func publicURL(r *http.Request, trustProxy bool, rel string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if trustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			first, _, _ := strings.Cut(proto, ",")
			scheme = strings.ToLower(strings.TrimSpace(first))
		}
	}
	return scheme + "://" + r.Host + rel
}

func (h *CustomerHandler) recordLogin(result string) {
	if h.opts.Metrics != nil {
		h.opts.Metrics.RecordLogin(result)
	}
}

func (h *CustomerHandler) recordUpload(result string) {
	if h.opts.Metrics != nil {
		h.opts.Metrics.RecordUpload(result)
	}
}
