package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for missing, expired or forged tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	secret  []byte
	expires time.Duration
	now     func() time.Time
}

func NewTokens(secret string, expires time.Duration) *Tokens {
	if expires <= 0 {
		expires = 12 * time.Hour
	}
	return &Tokens{secret: []byte(secret), expires: expires, now: time.Now}
}

func (t *Tokens) Issue(u *User) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.expires)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(u.ID), 10),
		"username": u.Username,
		"role":     string(u.Role),
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (t *Tokens) Parse(raw string) (Principal, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 0)
	if err != nil || id == 0 {
		return Principal{}, ErrInvalidToken
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	return Principal{UserID: uint(id), Username: username, Role: Role(role)}, nil
}
