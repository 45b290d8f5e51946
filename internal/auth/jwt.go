package auth

import (
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/you/go-globe-planner/internal/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username,omitempty"`
}

func isPublic(path string) bool {
	return strings.HasPrefix(path, "/auth/") || path == "/health"
}

// JWTMiddleware serves public routes directly and requires a valid bearer token
// for everything else. The token may also arrive as ?token= for SSE and
// websocket clients that cannot set headers.
func JWTMiddleware(public, protected http.Handler, svc *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			public.ServeHTTP(w, r)
			return
		}
		authH := r.Header.Get("Authorization")
		if authH == "" {
			if t := r.URL.Query().Get("token"); t != "" {
				authH = "Bearer " + t
			}
		}
		if !strings.HasPrefix(authH, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		id, err := svc.ParseToken(strings.TrimPrefix(authH, "Bearer "))
		if err != nil {
			log.Printf("JWT error: %v", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		protected.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func LoginHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req loginRequest
		if isJSON(r) {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "bad json")
				return
			}
		} else {
			req.Username, req.Password = r.FormValue("username"), r.FormValue("password")
		}
		tok, err := svc.Login(r.Context(), req.Username, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			log.Printf("login failed: %v", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{Token: tok, Username: req.Username})
	}
}

// SignupHandler registers a user and logs them in straight away.
func SignupHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req SignupRequest
		if isJSON(r) {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "bad json")
				return
			}
		} else {
			req = SignupRequest{
				Username:  r.FormValue("username"),
				Password1: r.FormValue("password1"),
				Password2: r.FormValue("password2"),
			}
		}
		u, tok, err := svc.Signup(r.Context(), req)
		switch {
		case errors.Is(err, ErrInvalidSignup):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, users.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "a user with that username already exists")
			return
		case err != nil:
			log.Printf("signup failed: %v", err)
			writeError(w, http.StatusInternalServerError, "signup failed")
			return
		}
		writeJSON(w, http.StatusCreated, tokenResponse{Token: tok, Username: u.Username})
	}
}

// LogoutHandler only acknowledges; tokens are stateless and expire on their own.
func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
