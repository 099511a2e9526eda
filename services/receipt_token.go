package services

import (
	"fmt"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/golang-jwt/jwt/v4"
)

const receiptTokenType = "receipt"

// ReceiptIssuer signs short-lived tokens that let the browser fetch the
// outcome of one payment without an account session.
type ReceiptIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewReceiptIssuer(secret string, ttl time.Duration) *ReceiptIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReceiptIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (r *ReceiptIssuer) Issue(reference string) (string, error) {
	now := r.now()
	claims := jwt.MapClaims{
		"ref": reference,
		"typ": receiptTokenType,
		"iat": now.Unix(),
		"exp": now.Add(r.ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign receipt token: %w", err)
	}
	return signed, nil
}

// Parse returns the payment reference carried by a valid receipt token.
func (r *ReceiptIssuer) Parse(tokenStr string) (string, error) {
	parser := jwt.Parser{}
	token, err := parser.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", apperrors.ErrInvalidReceipt
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperrors.ErrInvalidReceipt
	}
	if typ, ok := claims["typ"].(string); !ok || typ != receiptTokenType {
		return "", apperrors.ErrInvalidReceipt
	}
	ref, ok := claims["ref"].(string)
	if !ok || ref == "" {
		return "", apperrors.ErrInvalidReceipt
	}
	return ref, nil
}
