package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const mediaAudience = "media"

var (
	ErrInvalidLocator = errors.New("invalid media locator")
	ErrInvalidToken   = errors.New("invalid or expired media token")
)

// LocalStorage keeps artifacts under a directory and serves them through
// URLs carrying a short-lived HS256 token bound to the locator.
type LocalStorage struct {
	root    string
	baseURL string
	secret  []byte
	now     func() time.Time
}

func NewLocalStorage(root, baseURL, secret string) (*LocalStorage, error) {
	if secret == "" {
		return nil, errors.New("local storage requires a signing secret")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStorage{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		now:     time.Now,
	}, nil
}

// Path resolves a locator to a file under the storage root.
func (s *LocalStorage) Path(locator string) (string, error) {
	clean := path.Clean("/" + locator)[1:]
	if locator == "" || clean != locator {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader, _ string) (string, error) {
	dst, err := s.Path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return key, nil
}

func (s *LocalStorage) Sign(_ context.Context, locator string, ttl time.Duration) (string, error) {
	if _, err := s.Path(locator); err != nil {
		return "", err
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   locator,
		Audience:  jwt.ClaimStrings{mediaAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/media/" + locator + "?token=" + url.QueryEscape(token), nil
}

// Verify checks that token grants access to locator and has not expired.
func (s *LocalStorage) Verify(locator, token string) error {
	var claims jwt.RegisteredClaims
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}, SkipClaimsValidation: true}
	if _, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !claims.VerifyExpiresAt(s.now(), true) {
		return fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if !claims.VerifyAudience(mediaAudience, true) || claims.Subject != locator {
		return fmt.Errorf("%w: wrong resource", ErrInvalidToken)
	}
	return nil
}

func (s *LocalStorage) Delete(_ context.Context, locator string) error {
	p, err := s.Path(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
