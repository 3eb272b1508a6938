// Package jwtauth issues and parses short-lived reconnect tokens, adapted
// from sharetube-server's internal/service/room/jwt.go (HS256 via
// golang-jwt/jwt/v5). A reconnect token lets a member rejoin the same
// identity (and host status) across a transport-level reconnect instead of
// being treated as a brand new member.
package jwtauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid reconnect token")

type ReconnectClaims struct {
	MemberID string `json:"member_id"`
	RoomID   string `json:"room_id"`
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

func (i *Issuer) Issue(roomID, memberID string) (string, error) {
	claims := jwt.MapClaims{
		"room_id":   roomID,
		"member_id": memberID,
		"exp":       time.Now().Add(i.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

func (i *Issuer) Parse(tokenString string) (*ReconnectClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	roomID, _ := claims["room_id"].(string)
	memberID, _ := claims["member_id"].(string)
	if roomID == "" || memberID == "" {
		return nil, ErrInvalidToken
	}

	return &ReconnectClaims{RoomID: roomID, MemberID: memberID}, nil
}
