package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/service"
)

type UserAPI interface {
	Register(ctx context.Context, req service.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, string, error)
	IssueToken(user *domain.User) (string, error)
}

type CartMerger interface {
	MergeOnLogin(ctx context.Context, sessionToken string, userID int64) error
}

type AuthHandler struct {
	users   UserAPI
	carts   CartMerger
	timeout time.Duration
}

func NewAuthHandler(users UserAPI, carts CartMerger, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		users:   users,
		carts:   carts,
		timeout: timeout,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.users.Register(ctx, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := h.users.IssueToken(user)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// A fresh account can still carry an anonymous cart from browsing.
	h.mergeSessionCart(ctx, r, user.ID)

	respondJSON(w, http.StatusCreated, envelope{
		"message":  "user registered",
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
		"token":    token,
	})
}

type LoginRequestDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, token, err := h.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.mergeSessionCart(ctx, r, user.ID)

	respondJSON(w, http.StatusOK, envelope{
		"user_id":  user.ID,
		"username": user.Username,
		"token":    token,
	})
}

func (h *AuthHandler) mergeSessionCart(ctx context.Context, r *http.Request, userID int64) {
	sessionToken := getSessionTokenFromContext(r.Context())
	if sessionToken == "" {
		return
	}
	if err := h.carts.MergeOnLogin(ctx, sessionToken, userID); err != nil {
		// Login succeeded; a failed merge loses nothing permanent.
		log.Printf("session cart merge for user %d failed: %v", userID, err)
	}
}
