package auth

import "errors"

var (
	ErrTokenMissing    = errors.New("access token not found")
	ErrInvalidToken    = errors.New("invalid access token")
	ErrInvalidIssuer   = errors.New("invalid token issuer")
	ErrTokenExpired    = errors.New("access token expired")
	ErrInvalidSubject  = errors.New("invalid token subject")
	ErrSubjectMismatch = errors.New("token subject does not match user id")
)
