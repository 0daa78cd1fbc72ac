package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain"
)

// AdminClaims are the claims carried by an admin access token. The subject is the admin id.
type AdminClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// JWTManager issues and validates HS256 admin tokens
type JWTManager struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

// NewJWTManager creates a JWT manager. An empty issuer accepts tokens from any issuer.
func NewJWTManager(secret []byte, issuer string, expiry time.Duration) (*JWTManager, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &JWTManager{secret: secret, issuer: issuer, expiry: expiry, now: time.Now}, nil
}

// GenerateToken signs an access token for the admin
func (jm *JWTManager) GenerateToken(admin domain.Admin) (string, error) {
	if admin.ID == "" {
		return "", errors.New("admin id is required")
	}
	now := jm.now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jm.issuer,
			Subject:   admin.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(jm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Email: admin.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jm.secret)
}

// ValidateToken parses the token and returns the admin it was issued to
func (jm *JWTManager) ValidateToken(tokenString string) (domain.Admin, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(jm.now),
	}
	if jm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(jm.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jm.secret, nil
	}, opts...)
	if err != nil {
		return domain.Admin{}, err
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return domain.Admin{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return domain.Admin{}, errors.New("token has no subject")
	}

	return domain.Admin{ID: claims.Subject, Email: claims.Email}, nil
}
