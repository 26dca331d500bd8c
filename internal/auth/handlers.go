package auth

import (
	"encoding/json"
	"net/http"

	"github.com/kuitang/notewise/internal/errs"
	"github.com/kuitang/notewise/internal/obs"
)

// maxBodyBytes bounds auth request bodies.
const maxBodyBytes = 64 << 10

// Handler provides HTTP handlers for account routes.
type Handler struct {
	userService *UserService
}

// NewHandler creates a new auth handler.
func NewHandler(userService *UserService) *Handler {
	return &Handler{userService: userService}
}

// RegisterRoutes registers the public auth routes on the given mux. The
// profile routes need an authenticated user id and are wrapped by protect.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/auth/register", h.HandleRegister)
	mux.HandleFunc("POST /api/auth/login", h.HandleLogin)

	mux.Handle("GET /api/users/me", protect(http.HandlerFunc(h.HandleMe)))
	mux.Handle("PUT /api/users/me", protect(http.HandlerFunc(h.HandleUpdateMe)))
}

// HandleRegister handles POST /api/auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterParams
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.userService.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// LoginRequest is the request body for email/password login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /api/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleMe handles GET /api/users/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, errs.New(errs.Unauthenticated, "authentication required"))
		return
	}

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe handles PUT /api/users/me.
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, errs.New(errs.Unauthenticated, "authentication required"))
		return
	}

	var req UpdateProfileParams
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, errs.Wrap(errs.InvalidArgument, "invalid JSON body", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).Error("auth_request_failed", "code", string(code), "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error": errs.MessageOf(err),
		"code":  string(code),
	})
}
