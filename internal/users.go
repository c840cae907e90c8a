package internal

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"project-tracker-api/internal/auth"
	"project-tracker-api/internal/models"
)

const (
	minPasswordLength = 8
	// bcrypt ignores anything past 72 bytes.
	maxPasswordLength = 72
)

// registerUser creates an account and returns a token for it.
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	verr := &models.ValidationError{}
	if req.Name == "" {
		verr.Add("name", "is required")
	}
	if req.Email == "" {
		verr.Add("email", "is required")
	} else if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		verr.Add("email", "must be a valid email address")
	}
	switch {
	case req.Password == "":
		verr.Add("password", "is required")
	case len(req.Password) < minPasswordLength:
		verr.Add("password", "must be at least 8 characters")
	case len(req.Password) > maxPasswordLength:
		verr.Add("password", "must be at most 72 bytes")
	}
	if err := verr.Err(); err != nil {
		s.writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.writeError(w, r, models.FieldError("email", "is already registered"))
			return
		}
		s.writeError(w, r, err)
		return
	}

	s.Log.WithFields(logrus.Fields{"user_id": user.ID}).Info("user registered")
	s.respondWithToken(w, r, http.StatusCreated, user)
}

// loginUser handles user authentication
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		verr := &models.ValidationError{}
		if req.Email == "" {
			verr.Add("email", "is required")
		}
		if req.Password == "" {
			verr.Add("password", "is required")
		}
		s.writeError(w, r, verr)
		return
	}

	user, err := s.Store.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, models.ErrNotFound) {
		s.writeError(w, r, models.ErrUnauthorized)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.writeError(w, r, models.ErrUnauthorized)
		return
	}

	s.respondWithToken(w, r, http.StatusOK, user)
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	token, err := s.JWTManager.GenerateToken(auth.Identity{ID: user.ID, Name: user.Name, Email: user.Email})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, models.LoginResponse{
		Token: token,
		User:  user.Redacted(),
	})
}

// me returns the stored account of the caller.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		sendErrorResponse(w, "Authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	user, err := s.Store.UserByID(r.Context(), id.ID)
	if errors.Is(err, models.ErrNotFound) {
		sendErrorResponse(w, "User not found", "NOT_FOUND", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Redacted())
}
