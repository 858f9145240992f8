package mock

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/domain"
)

type ctxKey struct{}

// bcryptCost is the lowest cost bcrypt accepts. The fake API hashes like the
// real one but must stay fast under test.
const bcryptCost = bcrypt.MinCost

func hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
}

// SeedUser registers an account and returns its profile.
func (s *Server) SeedUser(name, email, password string) domain.User {
	hash, err := hashPassword(password)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := &account{
		user:         domain.User{ID: newID(), Name: name, Email: strings.ToLower(email), Role: "user"},
		passwordHash: hash,
	}
	s.accounts[acc.user.Email] = acc
	return acc.user
}

// IssueToken signs a valid token for user without going through sign-in.
func (s *Server) IssueToken(user domain.User) string {
	token, err := s.issuer.Issue(user)
	if err != nil {
		panic(err)
	}
	return token
}

// Revoke makes the API reject token from now on, as it does once a token
// expires or the password changes.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("token")
		if token == "" {
			writeFail(w, http.StatusUnauthorized, "You are not logged in. Please login to get access")
			return
		}

		s.mu.Lock()
		revoked := s.revoked[token]
		s.mu.Unlock()

		claims, err := s.issuer.Validate(token)
		if err != nil || revoked {
			writeFail(w, http.StatusUnauthorized, "Invalid Token. please login again")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims.ID)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req domain.Credentials
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		writeValidation(w, "email", "Email Required")
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		writeFail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "success",
		"user":    map[string]string{"name": acc.user.Name, "email": acc.user.Email, "role": acc.user.Role},
		"token":   s.IssueToken(acc.user),
	})
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req domain.Registration
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password != req.RePassword {
		writeValidation(w, "rePassword", "Password confirmation is incorrect")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(req.Email)
	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		writeFail(w, http.StatusConflict, "Account Already Exists")
		return
	}
	acc := &account{
		user:         domain.User{ID: newID(), Name: req.Name, Email: email, Role: "user"},
		passwordHash: hash,
		phone:        req.Phone,
	}
	s.accounts[email] = acc
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "success",
		"user":    map[string]string{"name": acc.user.Name, "email": acc.user.Email, "role": acc.user.Role},
		"token":   s.IssueToken(acc.user),
	})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordReset
	if err := decode(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	_, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()

	if !ok {
		writeFail(w, http.StatusNotFound, "There is no user registered with this email address "+req.Email)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"statusMsg": "success", "message": "Reset code sent to your email"})
}
