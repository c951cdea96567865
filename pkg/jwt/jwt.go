package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind separates session tokens from one-shot action tokens
type TokenKind string

const (
	SessionToken TokenKind = "session"
	ActionToken  TokenKind = "action"
)

// Realms carried in session tokens
const (
	RealmMember = "member"
	RealmAdmin  = "admin"
)

// ErrTokenExpired is returned when a token's expiry has passed; callers map
// it to a distinct user-facing message from signature failures.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenInvalid wraps every validation failure other than expiry: bad
// signature, malformed token, wrong kind, realm, or purpose. Callers match
// it to distinguish a rejected token from an infrastructure failure.
var ErrTokenInvalid = errors.New("invalid token")

// Claims represents the JWT claims structure
type Claims struct {
	MemberID  int64     `json:"member_id,omitempty"`
	AdminID   string    `json:"admin_id,omitempty"`
	Realm     string    `json:"realm,omitempty"`
	Purpose   string    `json:"purpose,omitempty"` // action tokens only
	TokenKind TokenKind `json:"token_kind"`
	jwt.RegisteredClaims
}

// Service handles JWT operations
type Service struct {
	secret            string
	accessTokenExpiry time.Duration
	setupTokenExpiry  time.Duration
	uploadTokenExpiry time.Duration
}

// NewService creates a new JWT service
func NewService(secret string, accessExpiry, setupExpiry, uploadExpiry time.Duration) *Service {
	return &Service{
		secret:            secret,
		accessTokenExpiry: accessExpiry,
		setupTokenExpiry:  setupExpiry,
		uploadTokenExpiry: uploadExpiry,
	}
}

// GenerateMemberToken generates a member session token
func (s *Service) GenerateMemberToken(memberID int64) (string, error) {
	now := time.Now()
	claims := Claims{
		MemberID:  memberID,
		Realm:     RealmMember,
		TokenKind: SessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "bspcp-membership",
			Subject:   fmt.Sprintf("member:%d", memberID),
		},
	}
	return s.sign(claims)
}

// GenerateAdminToken generates an admin session token
func (s *Service) GenerateAdminToken(adminID uuid.UUID) (string, error) {
	now := time.Now()
	claims := Claims{
		AdminID:   adminID.String(),
		Realm:     RealmAdmin,
		TokenKind: SessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "bspcp-membership",
			Subject:   "admin:" + adminID.String(),
		},
	}
	return s.sign(claims)
}

// GenerateActionToken generates a purpose-scoped one-time token for emailed
// links. The jti identifies the token in the consumed-token record.
func (s *Service) GenerateActionToken(memberID int64, purpose string, expiry time.Duration) (string, uuid.UUID, error) {
	now := time.Now()
	jti := uuid.New()
	claims := Claims{
		MemberID:  memberID,
		Purpose:   purpose,
		TokenKind: ActionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "bspcp-membership",
			Subject:   fmt.Sprintf("member:%d", memberID),
		},
	}
	token, err := s.sign(claims)
	if err != nil {
		return "", uuid.Nil, err
	}
	return token, jti, nil
}

// SetupTokenExpiry returns the configured password-setup token lifetime
func (s *Service) SetupTokenExpiry() time.Duration { return s.setupTokenExpiry }

// UploadTokenExpiry returns the configured payment-upload token lifetime
func (s *Service) UploadTokenExpiry() time.Duration { return s.uploadTokenExpiry }

// ValidateSessionToken validates a session token for the expected realm
func (s *Service) ValidateSessionToken(tokenString, realm string) (*Claims, error) {
	claims, err := s.validate(tokenString, SessionToken)
	if err != nil {
		return nil, err
	}
	if claims.Realm != realm {
		return nil, fmt.Errorf("%w: realm: expected %s, got %s", ErrTokenInvalid, realm, claims.Realm)
	}
	return claims, nil
}

// ValidateActionToken validates a one-time action token for the expected purpose
func (s *Service) ValidateActionToken(tokenString, purpose string) (*Claims, error) {
	claims, err := s.validate(tokenString, ActionToken)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose: expected %s, got %s", ErrTokenInvalid, purpose, claims.Purpose)
	}
	return claims, nil
}

// JTI returns the token id claim as a uuid
func (c *Claims) JTI() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.ID)
}

// validate parses and checks a token of the given kind
func (s *Service) validate(tokenString string, expectedKind TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		// Expiry is surfaced distinctly so callers can tell the user to
		// request a fresh link instead of treating it as tampering.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("%w: bad claims", ErrTokenInvalid)
	}

	if claims.TokenKind != expectedKind {
		return nil, fmt.Errorf("%w: kind: expected %s, got %s", ErrTokenInvalid, expectedKind, claims.TokenKind)
	}

	return claims, nil
}

// sign serializes and signs claims with HS256
func (s *Service) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
