// Package auth provides bearer-token authentication and user accounts for the
// notewise API.
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	stdtime "time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the lifetime of an access token when none is configured.
const DefaultTokenTTL = 24 * stdtime.Hour

// TokenAudience is the aud claim of every access token.
const TokenAudience = "notewise-api"

// clockSkew is how far in the future iat and nbf may lie.
const clockSkew = stdtime.Minute

// Token verification errors.
var (
	ErrNoToken          = errors.New("auth: no access token provided")
	ErrMalformedToken   = errors.New("auth: malformed access token")
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrTokenExpired     = errors.New("auth: token expired")
	ErrTokenNotYetValid = errors.New("auth: token not yet valid")
	ErrInvalidIssuer    = errors.New("auth: invalid token issuer")
	ErrInvalidAudience  = errors.New("auth: invalid token audience")
)

// TokenClaims represents the verified claims of an access token.
type TokenClaims struct {
	Subject   string       // sub (user_id)
	ExpiresAt stdtime.Time // exp
	IssuedAt  stdtime.Time // iat
	TokenID   string       // jti
}

// Tokens issues and verifies EdDSA-signed JWT access tokens.
type Tokens struct {
	issuer     string
	ttl        stdtime.Duration
	signingKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	clock      Clock
}

// NewTokens creates a token issuer/verifier.
//
// Parameters:
//   - issuer: iss claim written to and required on every token
//   - seed: 32-byte Ed25519 seed (derived from the master key)
//   - ttl: token lifetime; 0 means DefaultTokenTTL
func NewTokens(issuer string, seed []byte, ttl stdtime.Duration) (*Tokens, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("auth: signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	signingKey := ed25519.NewKeyFromSeed(seed)
	return &Tokens{
		issuer:     issuer,
		ttl:        ttl,
		signingKey: signingKey,
		publicKey:  signingKey.Public().(ed25519.PublicKey),
		clock:      realClock{},
	}, nil
}

// SetClock replaces the clock used for issuing and verifying. Intended for testing.
func (t *Tokens) SetClock(c Clock) {
	t.clock = c
}

// Issue signs an access token for userID. Returns the token and its expiry.
func (t *Tokens) Issue(userID string) (string, stdtime.Time, error) {
	now := t.clock.Now()
	expiresAt := now.Add(t.ttl)

	claims := jwt.Claims{
		ID:        uuid.NewString(),
		Issuer:    t.issuer,
		Subject:   userID,
		Audience:  jwt.Audience{TokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(expiresAt),
	}

	token, err := t.sign(claims)
	if err != nil {
		return "", stdtime.Time{}, err
	}
	return token, expiresAt, nil
}

func (t *Tokens) sign(claims jwt.Claims) (string, error) {
	signerOpts := jose.SignerOptions{}
	signerOpts.WithType("JWT")

	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.EdDSA,
		Key:       t.signingKey,
	}, &signerOpts)
	if err != nil {
		return "", fmt.Errorf("auth: failed to create signer: %w", err)
	}

	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("auth: failed to sign token: %w", err)
	}
	return token, nil
}

// Verify checks the token signature, issuer, audience and validity window and
// returns its claims.
func (t *Tokens) Verify(token string) (*TokenClaims, error) {
	parsedToken, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	var claims jwt.Claims
	if err := parsedToken.Claims(t.publicKey, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	now := t.clock.Now()

	if claims.Issuer != t.issuer {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrInvalidIssuer, t.issuer, claims.Issuer)
	}
	if !claims.Audience.Contains(TokenAudience) {
		return nil, fmt.Errorf("%w: expected %q in audience", ErrInvalidAudience, TokenAudience)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMalformedToken)
	}

	if claims.Expiry == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	expiresAt := claims.Expiry.Time()
	if !now.Before(expiresAt) {
		return nil, fmt.Errorf("%w: expired at %v", ErrTokenExpired, expiresAt)
	}

	var issuedAt stdtime.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time()
		if issuedAt.After(now.Add(clockSkew)) {
			return nil, fmt.Errorf("%w: issued at %v", ErrTokenNotYetValid, issuedAt)
		}
	}
	if claims.NotBefore != nil {
		if notBefore := claims.NotBefore.Time(); notBefore.After(now.Add(clockSkew)) {
			return nil, fmt.Errorf("%w: not before %v", ErrTokenNotYetValid, notBefore)
		}
	}

	return &TokenClaims{
		Subject:   claims.Subject,
		ExpiresAt: expiresAt,
		IssuedAt:  issuedAt,
		TokenID:   claims.ID,
	}, nil
}
