package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrTokenExpired = errors.New("auth: token expired")
)

// clockSkew tolerates small clock differences between api replicas.
const clockSkew = 30 * time.Second

// TokenClaims is the payload of the HS256 session token.
type TokenClaims struct {
	ID        string `json:"jti"`
	Sub       string `json:"sub"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	IssuedAt  int64  `json:"iat"`
	NotBefore int64  `json:"nbf,omitempty"`
	Exp       int64  `json:"exp"`
	Issuer    string `json:"iss,omitempty"`
	Audience  string `json:"aud,omitempty"`
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

var b64 = base64.RawURLEncoding

var encodedHeader = func() string {
	h, _ := json.Marshal(tokenHeader{Alg: "HS256", Typ: "JWT"})
	return b64.EncodeToString(h)
}()

func SignJWT(secret string, claims TokenClaims) (string, error) {
	if secret == "" {
		return "", errors.New("auth: empty signing secret")
	}
	body, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("auth: encode claims: %w", err)
	}
	signed := encodedHeader + "." + b64.EncodeToString(body)
	return signed + "." + b64.EncodeToString(mac(secret, signed)), nil
}

func mac(secret, signed string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(signed))
	return h.Sum(nil)
}

// VerifyJWT accepts only HS256 tokens signed with secret. It checks the
// issuer when one is given, and the nbf/exp window allowing clockSkew.
func VerifyJWT(secret, issuer, token string, now time.Time) (*TokenClaims, error) {
	head, rest, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidToken
	}
	body, sig, ok := strings.Cut(rest, ".")
	if !ok || strings.Contains(sig, ".") {
		return nil, ErrInvalidToken
	}

	var hdr tokenHeader
	if err := decodeSegment(head, &hdr); err != nil || hdr.Alg != "HS256" {
		return nil, ErrInvalidToken
	}
	gotSig, err := b64.DecodeString(sig)
	if err != nil || !hmac.Equal(gotSig, mac(secret, head+"."+body)) {
		return nil, ErrInvalidToken
	}

	var claims TokenClaims
	if err := decodeSegment(body, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Sub == "" || (issuer != "" && claims.Issuer != issuer) {
		return nil, ErrInvalidToken
	}
	if claims.NotBefore != 0 && now.Add(clockSkew).Unix() < claims.NotBefore {
		return nil, ErrInvalidToken
	}
	if claims.Exp != 0 && now.Add(-clockSkew).Unix() > claims.Exp {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}

func decodeSegment(seg string, v any) error {
	raw, err := b64.DecodeString(seg)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	return dec.Decode(v)
}
