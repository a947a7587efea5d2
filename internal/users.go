package internal

import (
	"errors"
	"net/http"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/auth"
	"procurement-api/internal/logging"
	"procurement-api/internal/models"
	"procurement-api/internal/validation"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidCredentials = apperr.Unauthorized("invalid credentials")

// loginUser handles user authentication
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		sendError(w, r, err)
		return
	}

	log := logging.FromContext(r.Context())
	user, err := s.Services.Users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		sendError(w, r, err)
		return
	}
	if user == nil || !user.IsActive {
		log.Info("login rejected", zap.String("email", req.Email))
		sendError(w, r, errInvalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Info("login rejected", zap.String("user_id", user.ID))
		sendError(w, r, errInvalidCredentials)
		return
	}

	// Update last login time
	now := time.Now().UTC()
	user.LastLoginAt = &now
	if updated, err := s.Services.Users.Update(r.Context(), user.ID, user); err != nil {
		// Log error but don't fail login
		log.Warn("failed to update last_login_at", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user = updated
	}

	token, expiresAt, err := s.JWTManager.GenerateToken(user.ID, user.Email, user.Roles)
	if err != nil {
		sendError(w, r, apperr.Internal(err, "failed to generate token"))
		return
	}

	log.Info("user logged in", zap.String("user_id", user.ID), zap.Strings("roles", user.Roles))
	apperr.WriteData(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Redacted(),
	})
}

// getUserProfile returns the calling user
func (s *Server) getUserProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.Services.Users.Get(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		sendError(w, r, err)
		return
	}
	apperr.WriteData(w, http.StatusOK, user.Redacted())
}

// changePassword replaces the calling user's password after checking the current one
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		sendError(w, r, err)
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	user, err := s.Services.Users.Get(r.Context(), userID)
	if err != nil {
		sendError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		sendError(w, r, apperr.ValidationFields(map[string]string{"current_password": "is incorrect"}))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			sendError(w, r, apperr.ValidationFields(map[string]string{"new_password": "must be at most 72 bytes"}))
			return
		}
		sendError(w, r, apperr.Internal(err, "failed to hash new password"))
		return
	}
	user.PasswordHash = string(hash)
	if _, err := s.Services.Users.Update(r.Context(), userID, user); err != nil {
		sendError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("password changed", zap.String("user_id", userID))
	w.WriteHeader(http.StatusNoContent)
}
