package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"billflow/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidLinkToken = errors.New("invalid or expired invoice link")

const linkIssuer = "billflow"

// LinkClaims identify the invoice a public view link grants access to
type LinkClaims struct {
	InvoiceID string `json:"inv"`
	UserID    string `json:"uid"`
	jwt.RegisteredClaims
}

// LinkSigner issues and verifies the signed "view invoice" links sent to clients
type LinkSigner struct {
	baseURL string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

func NewLinkSigner(cfg config.LinksConfig) *LinkSigner {
	return &LinkSigner{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  []byte(cfg.Secret),
		ttl:     cfg.TokenTTL,
		now:     time.Now,
	}
}

func (s *LinkSigner) Sign(invoiceID, userID string) (string, error) {
	now := s.now()
	claims := &LinkClaims{
		InvoiceID: invoiceID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   invoiceID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    linkIssuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign invoice link: %w", err)
	}
	return token, nil
}

// InvoiceURL returns the public link for an invoice
func (s *LinkSigner) InvoiceURL(invoiceID, userID string) (string, error) {
	token, err := s.Sign(invoiceID, userID)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/invoice/" + token, nil
}

func (s *LinkSigner) Verify(tokenString string) (*LinkClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrInvalidLinkToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &LinkClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(linkIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLinkToken, err)
	}

	claims, ok := token.Claims.(*LinkClaims)
	if !ok || !token.Valid || claims.InvoiceID == "" {
		return nil, ErrInvalidLinkToken
	}
	return claims, nil
}
