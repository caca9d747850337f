package sessions

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	minSecretLength = 32

	signingKeyInfo    = "account-dashboard session signing key"
	encryptionKeyInfo = "account-dashboard session encryption key"
)

// Codec turns claims into an opaque string that is first signed (HS256 JWT)
// and then encrypted (JWE, direct key, A256GCM), and back again.
type Codec struct {
	signingKey    []byte
	encryptionKey []byte
	now           func() time.Time
}

type CodecOption func(*Codec)

// WithNowFunc sets the clock used to validate exp/iat (primarily for testing)
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec derives independent signing and encryption keys from secret.
func NewCodec(secret string, options ...CodecOption) (*Codec, error) {
	if len(secret) < minSecretLength {
		return nil, &errors.ConfigurationError{Invalid: []string{"SESSION_SECRET"}}
	}

	signingKey, err := deriveKey(secret, signingKeyInfo)
	if err != nil {
		return nil, err
	}
	encryptionKey, err := deriveKey(secret, encryptionKeyInfo)
	if err != nil {
		return nil, err
	}

	c := &Codec{
		signingKey:    signingKey,
		encryptionKey: encryptionKey,
		now:           time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("[sessions deriveKey] %w", err)
	}
	return key, nil
}

// Seal signs and encrypts claims.
func (c *Codec) Seal(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("[sessions Seal] sign: %w", err)
	}

	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: c.encryptionKey},
		(&jose.EncrypterOptions{}).WithContentType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("[sessions Seal] encrypter: %w", err)
	}
	obj, err := encrypter.Encrypt([]byte(signed))
	if err != nil {
		return "", fmt.Errorf("[sessions Seal] encrypt: %w", err)
	}
	return obj.CompactSerialize()
}

// Open decrypts sealed, verifies the signature and registered claims, and
// fills claims. Every rejection wraps ErrInvalidSession.
func (c *Codec) Open(sealed string, claims jwt.Claims) error {
	obj, err := jose.ParseEncrypted(sealed, []jose.KeyAlgorithm{jose.DIRECT}, []jose.ContentEncryption{jose.A256GCM})
	if err != nil {
		return fmt.Errorf("%w: parse: %v", errors.ErrInvalidSession, err)
	}
	plain, err := obj.Decrypt(c.encryptionKey)
	if err != nil {
		return fmt.Errorf("%w: decrypt: %v", errors.ErrInvalidSession, err)
	}

	_, err = jwt.ParseWithClaims(string(plain), claims,
		func(*jwt.Token) (any, error) { return c.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: verify: %v", errors.ErrInvalidSession, err)
	}
	return nil
}

type recordClaims struct {
	jwt.RegisteredClaims
	Session Record `json:"session"`
}

// SealRecord seals a session record. The record's ExpiresAt becomes the token exp.
func (c *Codec) SealRecord(rec Record) (string, error) {
	if rec.ExpiresAt.IsZero() {
		return "", fmt.Errorf("[sessions SealRecord] %w: session has no expiry", errors.ErrInvalidSession)
	}
	return c.Seal(recordClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   rec.Principal.ID,
			IssuedAt:  jwt.NewNumericDate(rec.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
			ID:        uuid.NewString(),
		},
		Session: rec,
	})
}

// OpenRecord is the inverse of SealRecord.
func (c *Codec) OpenRecord(sealed string) (Record, error) {
	var claims recordClaims
	if err := c.Open(sealed, &claims); err != nil {
		return Record{}, err
	}
	return claims.Session, nil
}
