package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/hmo-portal-session/apierror"
	apperrors "github.com/jrsteele09/hmo-portal-session/internal/errors"
	"github.com/jrsteele09/hmo-portal-session/users"
	"github.com/rs/zerolog/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User        users.User `json:"user"`
	AccessToken string     `json:"accessToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Enrollee is a member of an HMO plan.
type Enrollee struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	PlanID string `json:"planId"`
	Active bool   `json:"active"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apierror.Body{Code: code, Message: message})
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     RefreshCookiePath,
		MaxAge:   int(s.config.GetRefreshTokenExpiry().Seconds()),
		HttpOnly: true,
		Secure:   s.env != "DEV",
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.env != "DEV",
		SameSite: http.SameSiteStrictMode,
	})
}

// LoginHandler exchanges credentials for an access token and sets the refresh cookie.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			s.metrics.Logins.WithLabelValues("bad_request").Inc()
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			s.metrics.Logins.WithLabelValues("bad_request").Inc()
			writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "email and password are required")
			return
		}

		user, err := s.repos.Users.GetByEmail(req.Email)
		if err != nil || user.Blocked || !users.CheckPasswordHash(req.Password, user.PasswordHash) {
			s.metrics.Logins.WithLabelValues("invalid_credentials").Inc()
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", apperrors.ErrInvalidCredentials.Error())
			return
		}

		accessToken, err := s.creator.CreateAccessToken(user)
		if err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to create access token")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "could not issue token")
			return
		}
		refreshToken, err := s.refresh.Create(user.ID, user.TenantID)
		if err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to create refresh token")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "could not issue token")
			return
		}

		s.metrics.Logins.WithLabelValues("success").Inc()
		s.setRefreshCookie(w, refreshToken)
		writeJSON(w, http.StatusOK, loginResponse{User: user.Public(), AccessToken: accessToken})
	}
}

// RefreshHandler rotates the refresh cookie and returns a new access token.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reject := func(reason string, err error) {
			log.Debug().Err(err).Str("reason", reason).Msg("refresh rejected")
			s.metrics.Refreshes.WithLabelValues("rejected").Inc()
			s.clearRefreshCookie(w)
			writeError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", reason)
		}

		cookie, err := r.Cookie(RefreshCookieName)
		if err != nil || cookie.Value == "" {
			reject("missing refresh credential", err)
			return
		}

		stored, next, err := s.refresh.Rotate(cookie.Value)
		if err != nil {
			reject("refresh credential not accepted", err)
			return
		}

		user, err := s.repos.Users.GetByID(stored.UserID)
		if err != nil || user.Blocked {
			_ = s.refresh.Delete(next)
			reject("user no longer active", err)
			return
		}

		accessToken, err := s.creator.CreateAccessToken(user)
		if err != nil {
			log.Err(err).Str("user_id", user.ID).Msg("failed to create access token")
			writeError(w, http.StatusInternalServerError, "INTERNAL", "could not issue token")
			return
		}

		s.metrics.Refreshes.WithLabelValues("success").Inc()
		s.setRefreshCookie(w, next)
		writeJSON(w, http.StatusOK, refreshResponse{AccessToken: accessToken})
	}
}

// LogoutHandler revokes the refresh credential. It always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
			if err := s.refresh.Delete(cookie.Value); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
				log.Err(err).Msg("failed to revoke refresh token")
			}
		}
		s.clearRefreshCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		user, err := s.repos.Users.GetByID(claims.Subject)
		if err != nil {
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		writeJSON(w, http.StatusOK, user.Public())
	}
}

var demoEnrollees = []Enrollee{
	{ID: "enr-1001", Name: "Chidinma Okafor", PlanID: "gold-family", Active: true},
	{ID: "enr-1002", Name: "Tunde Bakare", PlanID: "silver-individual", Active: true},
	{ID: "enr-1003", Name: "Amaka Eze", PlanID: "gold-family", Active: false},
}

func (s *Server) EnrolleesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, demoEnrollees)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
