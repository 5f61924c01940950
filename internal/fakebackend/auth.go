package fakebackend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone"`
	Role     string `json:"role" validate:"omitempty,oneof=buyer seller"`
}

// AddUser registers an account and returns its id. Emails are case
// insensitive.
func (s *Server) AddUser(name, email, password, role string) (string, error) {
	if len(password) < 6 {
		return "", errInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	if role == "" {
		role = roleBuyer
	}
	key := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[key]; exists {
		return "", ErrUserExists
	}
	u := &user{ID: uuid.NewString(), Name: strings.TrimSpace(name), Email: key, Role: role, hash: hash}
	s.users[u.ID] = u
	s.byEmail[key] = u.ID
	return u.ID, nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	var u user
	id, found := s.byEmail[strings.ToLower(strings.TrimSpace(req.Email))]
	if found {
		u = *s.users[id]
	}
	s.mu.Unlock()

	if !found || bcrypt.CompareHashAndPassword(u.hash, []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		s.log.Error("sign token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "could not issue token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"token": token, "user": u.toJSON()})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.AddUser(req.Name, req.Email, req.Password, req.Role)
	switch {
	case errors.Is(err, ErrUserExists):
		respondError(w, http.StatusBadRequest, "user_exists", "User already exists")
		return
	case err != nil:
		s.log.Error("register user", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal", "could not register user")
		return
	}

	s.mu.Lock()
	u := s.users[id]
	u.Phone = strings.TrimSpace(req.Phone)
	out := u.toJSON()
	s.mu.Unlock()
	respondJSON(w, http.StatusCreated, map[string]any{"user": out})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"user": u.toJSON()})
}
