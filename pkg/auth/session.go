package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/agencydesk/mdconsole/pkg/apiclient"
)

// FileSession keeps the CLI's bearer token on disk between invocations.
type FileSession struct {
	path string
	mu   sync.Mutex
}

func NewFileSession(path string) *FileSession {
	return &FileSession{path: path}
}

func (s *FileSession) Save(token string) error {
	if _, err := ParseUnverified(token); err != nil {
		return fmt.Errorf("refusing to store token: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.WriteFile(s.path, []byte(token+"\n"), 0o600)
}

func (s *FileSession) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", apiclient.ErrNoSession
	}
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", apiclient.ErrNoSession
	}
	return token, nil
}

func (s *FileSession) Claims(ctx context.Context) (*SessionClaims, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return ParseUnverified(token)
}

// Invalidate forgets the stored token, forcing a new login.
func (s *FileSession) Invalidate(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(s.path)
}

type tokenKey struct{}

func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// RequestTokens forwards the caller's own bearer token to the upstream API. A rejected
// token is surfaced to the caller as a 401; there is nothing to forget server side.
type RequestTokens struct{}

func (RequestTokens) Token(ctx context.Context) (string, error) {
	token, ok := TokenFromContext(ctx)
	if !ok {
		return "", apiclient.ErrNoSession
	}
	return token, nil
}

func (RequestTokens) Invalidate(context.Context) {}
