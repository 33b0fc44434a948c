package api

import (
	"encoding/json"
	"net/http"
	"net/mail"

	"github.com/google/uuid"
	"github.com/tonerolima/kobopay/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Pin      string `json:"pin"`
	Phone    string `json:"phone,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.Username == "" || len(req.Password) < 8 {
		respondWithError(w, http.StatusBadRequest, "username and a password of at least 8 characters are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Pin) != 4 {
		respondWithError(w, http.StatusBadRequest, "pin must be 4 digits")
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	pinHash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		PinHash:      string(pinHash),
		Role:         domain.RoleUser,
		Phone:        req.Phone,
		IsActive:     true,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		respondWithDomainError(w, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	respondWithJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Login checks the credentials, signs a token, and registers its
// session. The token is useless without the session row, so logout and
// admin revocation take effect server-side.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Same response for unknown email and wrong password.
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.IsActive {
		respondWithDomainError(w, domain.ErrUserInactive)
		return
	}

	token, err := h.sessions.Issue(user.ID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	if _, err := h.sessions.Create(r.Context(), user.ID, token); err != nil {
		respondWithDomainError(w, err)
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID)
	respondWithJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// verifyPin checks a transaction pin against the user's stored hash.
// Money-out endpoints call this before booking anything.
func verifyPin(user *domain.User, pin string) error {
	if bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte(pin)) != nil {
		return domain.ErrInvalidPin
	}
	return nil
}

// Logout revokes the presented token's session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := h.sessions.Logout(r.Context(), token); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
