package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/tutord/internal/auth"
	"github.com/kalambet/tutord/internal/mentor"
	"github.com/kalambet/tutord/internal/storage"
	"github.com/kalambet/tutord/internal/tutor"
)

const (
	defaultTurnTimeout      = 60 * time.Second
	defaultInteractionLimit = 20
	maxInteractionLimit     = 100
)

// Tutor is the policy engine as seen by the transport layer.
type Tutor interface {
	HandleTurn(ctx context.Context, userKey, message string) (tutor.Reply, error)
	Prepare(userKey, message string) tutor.Request
	ReloadCorpus(ctx context.Context) (tutor.ReloadStatus, error)
	Profile(userKey string) (mentor.Profile, bool)
	LastLanguage(userKey string) mentor.Language
}

// Accounts handles signup, login and token checks.
type Accounts interface {
	TokenResolver
	Signup(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, token string) error
}

// InteractionLister reads a user's stored turns.
type InteractionLister interface {
	GetRecentInteractions(ctx context.Context, userID string, limit int) ([]storage.Interaction, error)
}

// Meta describes the running service for GET /meta/config.
type Meta struct {
	Service         string   `json:"service"`
	Model           string   `json:"model"`
	Languages       []string `json:"languages"`
	DefaultLanguage string   `json:"default_language"`
	Version         string   `json:"version"`
}

// Deps holds everything the HTTP API needs.
type Deps struct {
	Tutor        Tutor
	Accounts     Accounts
	Interactions InteractionLister // optional; GET /interactions answers 404 when nil
	AdminKey     string
	Meta         Meta
	TurnTimeout  time.Duration
}

const errEmptyMessage = "message is required and must not be empty"

// blank reports whether a chat message has no text. The tutor itself accepts
// any message, so the transports reject blank ones before a turn starts.
func blank(message string) bool {
	return strings.TrimSpace(message) == ""
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply       string          `json:"reply"`
	Language    mentor.Language `json:"language"`
	Temperature float64         `json:"temperature"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NewHandler builds the tutor HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.TurnTimeout <= 0 {
		deps.TurnTimeout = defaultTurnTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)
	r.Get("/meta/config", handleMeta(deps.Meta))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", handleSignup(deps))
		r.Post("/login", handleLogin(deps))
		r.With(BearerAuth(deps.Accounts)).Post("/logout", handleLogout(deps))
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Accounts))
		r.Post("/chat", handleChat(deps))
		r.Post("/chat/preview", handleChatPreview(deps))
		r.Get("/profile", handleProfile(deps))
		if deps.Interactions != nil {
			r.Get("/interactions", handleListInteractions(deps))
		}
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminKey(deps.AdminKey))
		r.Get("/status", handleAdminStatus)
		r.Post("/reload-notes", handleReloadNotes(deps))
	})

	return r
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleMeta(meta Meta) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, meta)
	}
}

func handleSignup(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if !decodeBody(w, r, &req) {
			return
		}
		id, err := deps.Accounts.Signup(r.Context(), req.Email, req.Password)
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "Email already registered")
			return
		case errors.Is(err, auth.ErrInvalidInput):
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "a valid email and a non-empty password are required")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "signup failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "User created successfully",
			"user_id": id,
		})
	}
}

func handleLogin(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if !decodeBody(w, r, &req) {
			return
		}
		token, err := deps.Accounts.Login(r.Context(), req.Email, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			httpError(w, http.StatusUnauthorized, "authentication_error", "Invalid credentials")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "login failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"access_token": token,
			"token_type":   "bearer",
		})
	}
}

func handleLogout(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := bearerToken(r)
		if err := deps.Accounts.Logout(r.Context(), token); err != nil && !errors.Is(err, auth.ErrInvalidToken) {
			httpError(w, http.StatusInternalServerError, "api_error", "logout failed: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserID(r.Context())
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if blank(req.Message) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", errEmptyMessage)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), deps.TurnTimeout)
		defer cancel()

		reply, err := deps.Tutor.HandleTurn(ctx, userID, req.Message)
		if err != nil {
			writeTurnError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{
			Reply:       reply.Text,
			Language:    reply.Language,
			Temperature: reply.Temperature,
		})
	}
}

func writeTurnError(w http.ResponseWriter, err error) {
	var pe *tutor.ProviderError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		httpError(w, http.StatusGatewayTimeout, "api_error", "tutor did not answer in time")
	case errors.As(err, &pe):
		httpError(w, http.StatusBadGateway, "api_error", "upstream error: %v", pe.Err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func handleChatPreview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserID(r.Context())
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if blank(req.Message) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", errEmptyMessage)
			return
		}
		writeJSON(w, http.StatusOK, deps.Tutor.Prepare(userID, req.Message))
	}
}

type profileResponse struct {
	Profile      mentor.Profile  `json:"profile"`
	Instructions string          `json:"instructions"`
	LastLanguage mentor.Language `json:"last_language,omitempty"`
}

func handleProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserID(r.Context())
		p, _ := deps.Tutor.Profile(userID)
		writeJSON(w, http.StatusOK, profileResponse{
			Profile:      p,
			Instructions: mentor.Instructions(p),
			LastLanguage: deps.Tutor.LastLanguage(userID),
		})
	}
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserID(r.Context())

		limit := defaultInteractionLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = min(n, maxInteractionLimit)
		}

		items, err := deps.Interactions.GetRecentInteractions(r.Context(), userID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing interactions: %v", err)
			return
		}
		if items == nil {
			items = []storage.Interaction{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "admin": true})
}

func handleReloadNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := deps.Tutor.ReloadCorpus(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
