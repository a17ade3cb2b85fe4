package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// AccessClaims is the payload of an access token. The user id travels in
// "_id", next to the standard claims.
type AccessClaims struct {
	UserID string `json:"_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.StandardClaims
}

// JWTVerifier checks HS256 access tokens signed with a shared secret.
type JWTVerifier struct {
	secret    []byte
	issuer    string // empty: not checked
	clockSkew time.Duration
	now       func() time.Time
}

func NewJWTVerifier(secret, issuer string, clockSkew time.Duration) *JWTVerifier {
	return &JWTVerifier{
		secret:    []byte(secret),
		issuer:    issuer,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

// Sign issues a token for userID valid for ttl. Used by tooling and tests;
// login lives in the account service.
func (v *JWTVerifier) Sign(userID, name string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := AccessClaims{
		UserID: userID,
		Name:   name,
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Parse validates the signature and the time claims with clock skew.
func (v *JWTVerifier) Parse(tokenStr string) (*AccessClaims, error) {
	if tokenStr == "" {
		return nil, ErrTokenMissing
	}

	claims := &AccessClaims{}
	parser := jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidIssuer
	}

	now := v.now()
	if claims.ExpiresAt != 0 && now.After(time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)) {
		return nil, ErrTokenExpired
	}

	if claims.SubjectID() == "" {
		return nil, ErrInvalidSubject
	}
	return claims, nil
}

// SubjectID prefers "_id" and falls back to "sub".
func (c *AccessClaims) SubjectID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.StandardClaims.Subject
}

// VerifySubject reports whether token is valid and issued to userID.
func (v *JWTVerifier) VerifySubject(token, userID string) error {
	claims, err := v.Parse(token)
	if err != nil {
		return err
	}
	if claims.SubjectID() != userID {
		return ErrSubjectMismatch
	}
	return nil
}
