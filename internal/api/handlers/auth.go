package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mb4540/gift-of-time-edu-rag/internal/config"
	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// AuthHandler issues accounts and HS256 bearer tokens.
type AuthHandler struct {
	db  core.Database
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(db core.Database, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, log: log}
}

type signupRequest struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		respondError(w, h.log, core.Errf(core.CodeValidation, "a valid email is required"))
		return
	case len(req.Password) < 8:
		respondError(w, h.log, core.Errf(core.CodeValidation, "password must be at least 8 characters"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.cfg.BcryptCost)
	if err != nil {
		respondError(w, h.log, core.NewError(core.CodeInternal, "hash password", err))
		return
	}
	user := &models.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(req.FirstName),
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := h.db.CreateUser(r.Context(), user); err != nil {
		respondError(w, h.log, err)
		return
	}
	h.log.Info("user registered", zap.String("user_id", user.ID))
	respond(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	user, err := h.db.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		// NotFound and a bad password answer identically.
		h.invalidCredentials(w, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.invalidCredentials(w, err)
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(h.cfg.JWTExpiry)),
	})
	signed, err := token.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		respondError(w, h.log, core.NewError(core.CodeInternal, "sign token", err))
		return
	}
	respond(w, http.StatusOK, map[string]any{"success": true, "token": signed, "user": user})
}

func (h *AuthHandler) invalidCredentials(w http.ResponseWriter, cause error) {
	h.log.Debug("login rejected", zap.Error(cause))
	respond(w, http.StatusUnauthorized, map[string]any{
		"success": false,
		"error":   "invalid email or password",
	})
}
