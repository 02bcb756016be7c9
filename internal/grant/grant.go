// Package grant issues and verifies the signed tokens that let a client open
// a transport connection as a player or as a group observer.
package grant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// Issuer is the iss claim of every grant.
const Issuer = "echoes-engine"

// Kind is what a grant lets its holder connect as.
type Kind string

const (
	KindPlayer Kind = "player"
	KindGroup  Kind = "group"
)

// Claims are the validated contents of a grant.
type Claims struct {
	Kind        Kind
	SubjectID   string
	DisplayName string
	GroupID     string
	ExpiresAt   time.Time
	ID          string
}

type grantClaims struct {
	jwt.RegisteredClaims
	Kind    Kind   `json:"kind"`
	Name    string `json:"name,omitempty"`
	GroupID string `json:"group_id,omitempty"`
}

// Signer issues and verifies HS256 grants.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner creates a signer. now may be nil.
func NewSigner(secret string, ttl time.Duration, now func() time.Time) (*Signer, error) {
	if len(secret) < 16 {
		return nil, errors.New("grant secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("grant ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{key: []byte(secret), ttl: ttl, now: now}, nil
}

// Issue signs a grant for subjectID. For KindGroup the subject is the group.
func (s *Signer) Issue(kind Kind, subjectID, name, groupID string) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", errors.New("grant subject is required")
	}
	now := s.now().UTC()
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subjectID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Kind:    kind,
		Name:    name,
		GroupID: groupID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return token, nil
}

// Verify checks the signature and expiry of a grant.
func (s *Signer) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, domain.ErrGrantInvalid
	}
	var parsed grantClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, domain.WrapEngineError(domain.ErrGrantInvalid.Code, domain.ErrGrantInvalid.Message, err)
	}
	if parsed.Subject == "" || (parsed.Kind != KindPlayer && parsed.Kind != KindGroup) {
		return Claims{}, domain.ErrGrantInvalid
	}
	return Claims{
		Kind:        parsed.Kind,
		SubjectID:   parsed.Subject,
		DisplayName: parsed.Name,
		GroupID:     parsed.GroupID,
		ExpiresAt:   parsed.ExpiresAt.Time,
		ID:          parsed.ID,
	}, nil
}
