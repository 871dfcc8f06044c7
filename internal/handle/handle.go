// Package handle issues and validates time-limited document retrieval
// handles. A handle is the artifact a granted access decision returns in
// place of a permanent link: a signed token scoped to exactly one document
// and one user, dead after its validity window.
package handle

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dealroom/internal/models"
)

var (
	ErrInvalidHandle      = errors.New("invalid retrieval handle")
	ErrExpiredHandle      = errors.New("retrieval handle has expired")
	ErrWrongDocument      = errors.New("retrieval handle is bound to a different document")
	ErrUnexpectedAudience = errors.New("token is not a retrieval handle")
)

// handleAudience separates retrieval handles from session tokens signed
// with the same key.
const handleAudience = "document-retrieval"

// Claims are the claims carried by a retrieval handle
type Claims struct {
	DocumentID uint `json:"document_id"`
	UserID     uint `json:"user_id"`
	jwt.RegisteredClaims
}

// Issuer signs and validates retrieval handles
type Issuer struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	ttl        time.Duration
}

// NewIssuer creates a handle issuer. The key pair is shared with the auth
// service; the audience claim keeps the two token kinds apart.
func NewIssuer(privateKey *ecdsa.PrivateKey, publicKey *ecdsa.PublicKey, ttl time.Duration) *Issuer {
	return &Issuer{
		privateKey: privateKey,
		publicKey:  publicKey,
		ttl:        ttl,
	}
}

// Issue creates a fresh handle for one document and one user. Each call
// produces a distinct token; handles are never cached or shared.
func (i *Issuer) Issue(documentID, userID uint) (*models.RetrievalHandle, error) {
	now := time.Now()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		DocumentID: documentID,
		UserID:     userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Audience:  jwt.ClaimStrings{handleAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	signed, err := token.SignedString(i.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign retrieval handle: %w", err)
	}

	return &models.RetrievalHandle{
		Token:      signed,
		DocumentID: documentID,
		ExpiresAt:  expiresAt,
	}, nil
}

// Validate checks signature, audience, expiry, and document binding, and
// returns the claims on success.
func (i *Issuer) Validate(tokenString string, documentID uint) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.publicKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredHandle
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandle, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidHandle
	}

	audienceOK := false
	for _, aud := range claims.Audience {
		if aud == handleAudience {
			audienceOK = true
			break
		}
	}
	if !audienceOK {
		return nil, ErrUnexpectedAudience
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredHandle
	}

	if claims.DocumentID != documentID {
		return nil, ErrWrongDocument
	}

	return claims, nil
}
