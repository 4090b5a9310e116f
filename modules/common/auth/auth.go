package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSubject    = errors.New("token has no subject")
)

// ParseBearer - "Bearer <token>" 헤더에서 토큰 추출, 형식이 다르면 빈 문자열
func ParseBearer(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// Decoder - JWT 의 sub 클레임을 읽는다
// secret 이 있으면 HS256 서명까지 검증, 없으면 payload 만 디코딩
type Decoder struct {
	secret []byte
}

func NewDecoder(secret string) *Decoder {
	return &Decoder{secret: []byte(secret)}
}

// Subject - 토큰의 sub 반환
func (d *Decoder) Subject(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	claims := jwt.MapClaims{}
	if len(d.secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return d.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if sub == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}

// Verifier - 액세스 토큰을 원격으로 검증하고 사용자 ID 반환
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// SupabaseVerifier - GoTrue /user 엔드포인트로 토큰 검증
type SupabaseVerifier struct {
	client gotrue.Client
}

func NewSupabaseVerifier(supabaseURL, apiKey string) *SupabaseVerifier {
	client := gotrue.New("", apiKey).WithCustomGoTrueURL(strings.TrimRight(supabaseURL, "/") + "/auth/v1")
	return &SupabaseVerifier{client: client}
}

func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	user, err := v.client.WithToken(token).GetUser()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if user == nil || user.ID == uuid.Nil {
		return "", ErrNoSubject
	}
	return user.ID.String(), nil
}
