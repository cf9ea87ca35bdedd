package http

import (
	"errors"
	"net/http"

	"spendboard/internal/core"
	"spendboard/internal/log"
)

type loginPage struct {
	Username string
	Next     string
	Error    string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions.Current(r); ok {
		http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", loginPage{Next: safeNext(r.URL.Query().Get("next"))})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid input", http.StatusBadRequest)
		return
	}
	username := sanitizeInput(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	next := safeNext(r.PostFormValue("next"))
	logger := log.FromContext(r.Context())

	page := loginPage{Username: username, Next: next}
	if username == "" || password == "" {
		page.Error = "Username and password are required"
		s.render(w, r, http.StatusBadRequest, "login.html", page)
		return
	}

	ok, err := s.auth.Authenticate(r.Context(), username, password)
	if err != nil {
		logger.Error("Authentication failed",
			log.FieldOperation, log.OpLogin,
			log.FieldUsername, username,
			log.FieldError, err,
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if !ok {
		logger.Warn("Invalid credentials",
			log.FieldOperation, log.OpLogin,
			log.FieldUsername, username,
			log.FieldClientIP, s.detector.ExtractClientIP(r),
		)
		page.Error = "Invalid credentials"
		s.render(w, r, http.StatusUnauthorized, "login.html", page)
		return
	}

	if err := s.sessions.Login(w, username); err != nil {
		logger.Error("Session creation failed", log.FieldUsername, username, log.FieldError, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	logger.Info("User logged in", log.FieldOperation, log.OpLogin, log.FieldUsername, username)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if username, ok := s.sessions.Current(r); ok {
		log.FromContext(r.Context()).Info("User logged out", log.FieldOperation, log.OpLogout, log.FieldUsername, username)
	}
	s.sessions.Logout(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleAddUser creates or overwrites a user. The plain-text bodies are what
// the home page shows next to the form.
func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Invalid input"))
		return
	}
	username := sanitizeInput(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	logger := log.FromContext(r.Context())

	err := s.auth.Register(r.Context(), username, password)
	switch {
	case errors.Is(err, core.ErrValidation):
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Invalid input"))
		return
	case err != nil:
		logger.Error("User registration failed",
			log.FieldOperation, log.OpRegister,
			log.FieldUsername, username,
			log.FieldError, err,
		)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Failed to add user"))
		return
	}

	actor, _ := sessionUser(r)
	logger.Info("User added", log.FieldOperation, log.OpRegister, log.FieldUsername, username, "added_by", actor)
	_, _ = w.Write([]byte("User added successfully!"))
}
