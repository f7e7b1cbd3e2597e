package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/trackmind/pushkit/internal/codec"
)

// aes128gcm record framing constants (RFC 8188/8291). The whole payload
// is delivered as a single record, so the record size is the fixed
// protocol default rather than the actual message length.
const (
	saltSize   = 16
	recordSize = 4096
	keyIDSize  = 65 // uncompressed P-256 point
)

// Encrypt encrypts a JSON payload for one subscriber per RFC 8291 and
// returns the complete aes128gcm record ready to POST. The ephemeral key
// pair and salt are generated fresh inside this call and never reused
// across messages; reuse would void the scheme's security guarantees.
func Encrypt(payload []byte, sub *Subscriber) ([]byte, error) {
	p256dh, auth, err := sub.decodeKeys()
	if err != nil {
		return nil, err
	}

	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("webpush: generate ephemeral key: %w", ErrEncryption)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("webpush: generate salt: %w", ErrEncryption)
	}

	return encryptWithMaterial(payload, p256dh, auth, ephemeral, salt)
}

// encryptWithMaterial runs the pipeline with caller-supplied ephemeral
// key and salt so tests can reproduce known ciphertext.
func encryptWithMaterial(payload, p256dh, auth []byte, ephemeral *ecdh.PrivateKey, salt []byte) ([]byte, error) {
	cek, nonce, err := deriveKeys(ephemeral, p256dh, auth, salt)
	if err != nil {
		return nil, err
	}

	ciphertext, err := sealPayload(payload, cek, nonce)
	if err != nil {
		return nil, err
	}

	return buildRecord(salt, ephemeral.PublicKey().Bytes(), ciphertext), nil
}

// deriveKeys performs the RFC 8291 section 3 key schedule: ECDH between
// the ephemeral private key and the subscriber's public key, then two
// HKDF stages producing the 16-byte content encryption key and the
// 12-byte nonce.
func deriveKeys(ephemeral *ecdh.PrivateKey, p256dh, auth, salt []byte) (cek, nonce []byte, err error) {
	subscriberKey, err := ecdh.P256().NewPublicKey(p256dh)
	if err != nil {
		return nil, nil, fmt.Errorf("webpush: import subscriber public key: %w", ErrKeyFormat)
	}

	shared, err := ephemeral.ECDH(subscriberKey)
	if err != nil {
		return nil, nil, fmt.Errorf("webpush: ECDH: %w", ErrEncryption)
	}

	// key_info = "WebPush: info" || 0x00 || ua_public || as_public
	ephemeralPub := ephemeral.PublicKey().Bytes()
	keyInfo := make([]byte, 0, 14+len(p256dh)+len(ephemeralPub))
	keyInfo = append(keyInfo, "WebPush: info\x00"...)
	keyInfo = append(keyInfo, p256dh...)
	keyInfo = append(keyInfo, ephemeralPub...)

	ikm, err := hkdfDerive(auth, shared, keyInfo, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("webpush: derive IKM: %w", ErrEncryption)
	}

	cek, err = hkdfDerive(salt, ikm, []byte("Content-Encoding: aes128gcm\x00"), 16)
	if err != nil {
		return nil, nil, fmt.Errorf("webpush: derive CEK: %w", ErrEncryption)
	}

	nonce, err = hkdfDerive(salt, ikm, []byte("Content-Encoding: nonce\x00"), 12)
	if err != nil {
		return nil, nil, fmt.Errorf("webpush: derive nonce: %w", ErrEncryption)
	}

	return cek, nonce, nil
}

// hkdfDerive performs HKDF-SHA256 extract and expand. An empty salt is
// substituted with a zero-filled hash-length block inside the kdf.
func hkdfDerive(salt, ikm, info []byte, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

// sealPayload appends the final-record padding delimiter and encrypts
// with AES-128-GCM. The 16-byte authentication tag is part of the
// returned ciphertext.
func sealPayload(payload, cek, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("webpush: AES cipher: %w", ErrEncryption)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("webpush: GCM: %w", ErrEncryption)
	}

	padded := make([]byte, 0, len(payload)+1)
	padded = append(padded, payload...)
	padded = append(padded, 0x02)

	return gcm.Seal(nil, nonce, padded, nil), nil
}

// buildRecord assembles the aes128gcm wire record:
// salt(16) || record_size(4, big-endian) || key_id_len(1) ||
// ephemeral_public_key(65) || ciphertext.
func buildRecord(salt, ephemeralPub, ciphertext []byte) []byte {
	out := make([]byte, 0, saltSize+4+1+len(ephemeralPub)+len(ciphertext))
	out = append(out, salt...)
	out = codec.AppendUint32(out, recordSize)
	out = append(out, byte(len(ephemeralPub)))
	out = append(out, ephemeralPub...)
	out = append(out, ciphertext...)
	return out
}
