package webpush

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/trackmind/pushkit/internal/codec"
)

// Credentials holds the process-wide VAPID key pair and contact subject.
// Loaded once from configuration and read-only for the process lifetime;
// the push core never generates or rotates it on its own.
type Credentials struct {
	PublicKey  []byte // 65-byte uncompressed P-256 point
	PrivateKey []byte // raw 32-byte scalar
	Subject    string // mailto: or https: contact URI
}

// NewCredentials parses base64url-encoded VAPID keys. The private key may
// be a raw 32-byte scalar or PKCS#8-wrapped (some key generators and the
// Web Crypto API emit the wrapped form). Missing or malformed material
// fails closed with ErrKeyFormat.
func NewCredentials(publicB64, privateB64, subject string) (*Credentials, error) {
	if publicB64 == "" || privateB64 == "" {
		return nil, fmt.Errorf("webpush.NewCredentials: missing VAPID key material: %w", ErrKeyFormat)
	}
	if !strings.HasPrefix(subject, "mailto:") && !strings.HasPrefix(subject, "https:") {
		return nil, fmt.Errorf("webpush.NewCredentials: subject must be a mailto: or https: URI, got %q", subject)
	}

	pub, err := codec.DecodeBase64URL(publicB64)
	if err != nil {
		return nil, fmt.Errorf("webpush.NewCredentials: decode public key: %w", ErrKeyFormat)
	}
	if _, err := ecdh.P256().NewPublicKey(pub); err != nil {
		return nil, fmt.Errorf("webpush.NewCredentials: public key is not a valid P-256 point: %w", ErrKeyFormat)
	}

	priv, err := codec.DecodeBase64URL(privateB64)
	if err != nil {
		return nil, fmt.Errorf("webpush.NewCredentials: decode private key: %w", ErrKeyFormat)
	}
	if len(priv) != codec.ScalarSize {
		unwrapped, err := codec.UnwrapPKCS8(priv)
		if err != nil {
			return nil, fmt.Errorf("webpush.NewCredentials: private key is neither a raw scalar nor PKCS#8: %w", ErrKeyFormat)
		}
		priv = unwrapped
	}
	if _, err := ecdh.P256().NewPrivateKey(priv); err != nil {
		return nil, fmt.Errorf("webpush.NewCredentials: private key is not a valid P-256 scalar: %w", ErrKeyFormat)
	}

	return &Credentials{PublicKey: pub, PrivateKey: priv, Subject: subject}, nil
}

// GenerateKeys creates a new VAPID key pair and returns the public key
// (uncompressed point) and private key (raw scalar) base64url-encoded,
// the formats expected by PushManager.subscribe() and by NewCredentials.
func GenerateKeys() (publicKey, privateKey string, err error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("webpush.GenerateKeys: %w", err)
	}
	return codec.EncodeBase64URL(key.PublicKey().Bytes()), codec.EncodeBase64URL(key.Bytes()), nil
}

// PublicKeyB64 returns the public key as base64url for the
// Authorization header's k parameter and for client subscription.
func (c *Credentials) PublicKeyB64() string {
	return codec.EncodeBase64URL(c.PublicKey)
}

// signingKey assembles the ECDSA private key used for ES256 signing.
func (c *Credentials) signingKey() (*ecdsa.PrivateKey, error) {
	x, y := elliptic.Unmarshal(elliptic.P256(), c.PublicKey)
	if x == nil {
		return nil, fmt.Errorf("webpush: invalid public key point: %w", ErrSigning)
	}
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y},
		D:         new(big.Int).SetBytes(c.PrivateKey),
	}, nil
}
