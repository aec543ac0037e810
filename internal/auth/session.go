// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/models"
)

// CookieName is the cookie carrying the session JWT.
const CookieName = "auth_token"

// IdentityProvider resolves the caller of a request.
type IdentityProvider interface {
	Identify(r *http.Request) (models.Identity, error)
}

// Authenticator signs and verifies ed25519 JWTs.
type Authenticator struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	// ttl of 0 means tokens carry no exp claim.
	ttl time.Duration
	now func() time.Time
}

var _ IdentityProvider = (*Authenticator)(nil)

// NewAuthenticator generates a fresh ed25519 key pair.
func NewAuthenticator(ttl time.Duration) (*Authenticator, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Authenticator{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}, nil
}

// NewAuthenticatorFromPath reads raw ed25519 private/public keys from disk.
func NewAuthenticatorFromPath(privatePath, publicPath string, ttl time.Duration) (*Authenticator, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, errors.New("ed25519 key files have the wrong size")
	}
	return &Authenticator{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// CreateJWT issues a token for id with sub, role, name and avatar claims.
func (a *Authenticator) CreateJWT(id models.Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":  id.UserID.String(),
		"role": string(id.Role),
		"name": id.Name,
	}
	if id.Avatar != "" {
		claims["avatar"] = id.Avatar
	}
	if a.ttl > 0 {
		claims["exp"] = a.now().Add(a.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(a.privateKey)
}

// AuthenticateJWT verifies tokenString and returns the identity it carries.
func (a *Authenticator) AuthenticateJWT(tokenString string) (models.Identity, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.publicKey, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return models.Identity{}, apperr.Wrap(apperr.CodeUnauthenticated, err, "jwt parse error")
	}
	if !t.Valid {
		return models.Identity{}, apperr.New(apperr.CodeUnauthenticated, "invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, apperr.New(apperr.CodeUnauthenticated, "invalid jwt claims")
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return models.Identity{}, apperr.New(apperr.CodeUnauthenticated, "missing or malformed sub in jwt")
	}

	id := models.Identity{UserID: userID, Role: models.RolePlayer}
	if role, _ := claims["role"].(string); role != "" {
		id.Role = models.Role(role)
	}
	id.Name, _ = claims["name"].(string)
	id.Avatar, _ = claims["avatar"].(string)
	return id, nil
}

// Identify authenticates a request using the Authorization bearer header,
// falling back to the auth_token cookie.
func (a *Authenticator) Identify(r *http.Request) (models.Identity, error) {
	token := bearerToken(r)
	if token == "" {
		if c, err := r.Cookie(CookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return models.Identity{}, apperr.Unauthenticated
	}
	return a.AuthenticateJWT(token)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WriteKeyPair generates an ed25519 key pair and writes the raw keys in the
// format NewAuthenticatorFromPath reads.
func WriteKeyPair(privatePath, publicPath string) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	if err := os.WriteFile(privatePath, priv, 0o600); err != nil {
		return err
	}
	return os.WriteFile(publicPath, pub, 0o644)
}
