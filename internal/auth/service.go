package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"spendboard/internal/core"
	"spendboard/internal/log"
)

type Service struct {
	store  Store
	cost   int
	logger *log.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService creates a service hashing with bcrypt at the given cost.
// A cost of 0 means bcrypt.DefaultCost.
func NewService(store Store, cost int, logger *log.Logger) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{store: store, cost: cost, logger: logger.WithComponent(log.ComponentAuth)}
}

// Register stores a salted hash of password for username, replacing any
// existing entry. Username is trimmed; empty values fail with core.ErrValidation.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required: %w", core.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return fmt.Errorf("password longer than 72 bytes: %w", core.ErrValidation)
		}
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Put(ctx, username, string(hash)); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldOperation, log.OpRegister, log.FieldUsername, username)
	return nil
}

// Import stores an already bcrypt-hashed password.
func (s *Service) Import(ctx context.Context, username, hash string) error {
	username = strings.TrimSpace(username)
	hash = strings.TrimSpace(hash)
	if username == "" || hash == "" {
		return fmt.Errorf("username and hash are required: %w", core.ErrValidation)
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("user %q: not a bcrypt hash: %w", username, core.ErrValidation)
	}
	if err := s.store.Put(ctx, username, hash); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// Authenticate reports whether password matches the stored hash. Unknown
// users and mismatches both yield false with a nil error; only store
// failures are returned.
func (s *Service) Authenticate(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	hash, err := s.store.Get(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		// Spend the same work as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("spendboard-unknown-user"), s.cost)
	})
	return s.dummyHash
}

// BootstrapConfig lists the sources of initial accounts.
type BootstrapConfig struct {
	UsersFile     string // lines of "username:bcrypt-hash"
	AdminUsername string
	AdminPassword string
}

// Bootstrap loads initial accounts. It returns the number of accounts stored.
func (s *Service) Bootstrap(ctx context.Context, cfg BootstrapConfig) (int, error) {
	n := 0
	if cfg.UsersFile != "" {
		entries, err := ReadUsersFile(cfg.UsersFile)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			if err := s.Import(ctx, e.Username, e.Hash); err != nil {
				return n, fmt.Errorf("%s line %d: %w", cfg.UsersFile, e.Line, err)
			}
			n++
		}
	}
	if cfg.AdminUsername != "" {
		if err := s.Register(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return n, fmt.Errorf("bootstrap admin: %w", err)
		}
		n++
	}
	s.logger.InfoContext(ctx, "Bootstrap accounts loaded", log.FieldOperation, log.OpBootstrap, "count", n)
	return n, nil
}

// UserEntry is one line of a users file.
type UserEntry struct {
	Username string
	Hash     string
	Line     int
}

// ReadUsersFile parses "username:hash" lines. Blank lines and lines starting
// with # are skipped.
func ReadUsersFile(path string) ([]UserEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open users file: %w", err)
	}
	defer f.Close()

	var out []UserEntry
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		user, hash, ok := strings.Cut(text, ":")
		if !ok || strings.TrimSpace(user) == "" || strings.TrimSpace(hash) == "" {
			return nil, fmt.Errorf("%s line %d: expected username:hash: %w", path, line, core.ErrValidation)
		}
		out = append(out, UserEntry{Username: strings.TrimSpace(user), Hash: strings.TrimSpace(hash), Line: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	return out, nil
}
