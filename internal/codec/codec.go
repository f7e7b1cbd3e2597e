// Package codec holds the byte-level helpers shared by the push pipeline:
// base64url as used on the wire, big-endian packing for the aes128gcm
// record header, and the fixed PKCS#8 framing for a raw P-256 private
// scalar. It has no dependencies beyond the standard library.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// EncodeBase64URL encodes bytes as unpadded base64url, the encoding used
// for every key and token segment in the Web Push protocol.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL decodes base64url input with or without padding.
// Browsers and key generators are inconsistent about the trailing '='.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// AppendUint32 appends v in big-endian byte order.
func AppendUint32(dst []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, v)
}

// Uint32 reads a big-endian uint32 from the first four bytes of b.
func Uint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// pkcs8P256Prefix is the DER encoding of a PKCS#8 PrivateKeyInfo for an
// EC key on prime256v1, up to the 32-byte private scalar. The shape is
// constant for this curve, so wrapping and unwrapping reduce to a fixed
// prefix plus the scalar.
var pkcs8P256Prefix = []byte{
	0x30, 0x41, // SEQUENCE, 65 bytes
	0x02, 0x01, 0x00, // INTEGER 0 (version)
	0x30, 0x13, // SEQUENCE, 19 bytes (AlgorithmIdentifier)
	0x06, 0x07, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x02, 0x01, // OID id-ecPublicKey
	0x06, 0x08, 0x2a, 0x86, 0x48, 0xce, 0x3d, 0x03, 0x01, 0x07, // OID prime256v1
	0x04, 0x27, // OCTET STRING, 39 bytes
	0x30, 0x25, // SEQUENCE, 37 bytes (ECPrivateKey)
	0x02, 0x01, 0x01, // INTEGER 1 (ecPrivkeyVer1)
	0x04, 0x20, // OCTET STRING, 32 bytes (the scalar)
}

// ScalarSize is the length of a raw P-256 private scalar.
const ScalarSize = 32

// WrapPKCS8 wraps a raw 32-byte P-256 private scalar in the fixed PKCS#8
// framing expected by consumers that import keys in "pkcs8" format.
func WrapPKCS8(scalar []byte) ([]byte, error) {
	if len(scalar) != ScalarSize {
		return nil, fmt.Errorf("codec.WrapPKCS8: scalar must be %d bytes, got %d", ScalarSize, len(scalar))
	}
	out := make([]byte, 0, len(pkcs8P256Prefix)+ScalarSize)
	out = append(out, pkcs8P256Prefix...)
	out = append(out, scalar...)
	return out, nil
}

// UnwrapPKCS8 extracts the raw 32-byte scalar from a PKCS#8-wrapped P-256
// private key produced by WrapPKCS8 or an equivalent encoder.
func UnwrapPKCS8(der []byte) ([]byte, error) {
	if len(der) != len(pkcs8P256Prefix)+ScalarSize || !bytes.HasPrefix(der, pkcs8P256Prefix) {
		return nil, fmt.Errorf("codec.UnwrapPKCS8: not a PKCS#8 P-256 private key (%d bytes)", len(der))
	}
	scalar := make([]byte, ScalarSize)
	copy(scalar, der[len(pkcs8P256Prefix):])
	return scalar, nil
}
