// Package auth issues and validates the access tokens that carry a caller's
// identity and tenant.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"TalentPipe-backend/internal/model"
)

// JwtIssuer is the issuer of every token this service accepts
const JwtIssuer = "TalentPipe"

// Roles a token can carry
const (
	RoleRecruiter = "recruiter"
	RoleCandidate = "candidate"
)

// Claims are the registered claims plus the tenant and role of the subject
type Claims struct {
	CompanyID string `json:"company_id,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the identity context of the token. Candidates have no company.
func (c *Claims) Actor() (model.Actor, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return model.Actor{}, errors.New("invalid token subject")
	}
	actor := model.Actor{ID: id}
	if c.CompanyID != "" {
		if actor.CompanyID, err = uuid.Parse(c.CompanyID); err != nil {
			return model.Actor{}, errors.New("invalid company claim")
		}
	}
	if c.Role == RoleRecruiter && actor.CompanyID == uuid.Nil {
		return model.Actor{}, errors.New("recruiter token without company")
	}
	return actor, nil
}

// Signer signs and verifies HS256 tokens
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer issuing tokens valid for ttl
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for subject. companyID may be uuid.Nil for candidates.
func (s *Signer) Issue(subject, companyID uuid.UUID, role string) (string, error) {
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    JwtIssuer,
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if companyID != uuid.Nil {
		claims.CompanyID = companyID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// ValidatedToken parses and verifies encodedToken
func (s *Signer) ValidatedToken(encodedToken string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(encodedToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, isvalid := token.Method.(*jwt.SigningMethodHMAC); !isvalid {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid access token")
	}
	if claims.Issuer != JwtIssuer {
		return nil, jwt.ErrTokenInvalidIssuer
	}
	return claims, nil
}
