package webpush

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLifetime bounds the VAPID token expiry. RFC 8292 caps it at 24h;
// 12h leaves headroom for clock skew at the push service.
const tokenLifetime = 12 * time.Hour

// endpointAudience derives the VAPID audience from a push endpoint:
// the origin (scheme://host), never the full path.
func endpointAudience(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("webpush: invalid push endpoint %q: %w", endpoint, ErrSigning)
	}
	return u.Scheme + "://" + u.Host, nil
}

// signToken builds and ES256-signs the compact VAPID JWT authorizing
// this server to post to the given push service audience. The signature
// is the raw 64-byte r||s form required by JWS, not DER.
func signToken(audience string, creds *Credentials, now time.Time) (string, error) {
	key, err := creds.signingKey()
	if err != nil {
		return "", err
	}

	// MapClaims keeps aud a plain string; push services reject the
	// single-element array form RegisteredClaims would produce.
	claims := jwt.MapClaims{
		"aud": audience,
		"exp": now.Add(tokenLifetime).Unix(),
		"sub": creds.Subject,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("webpush: sign VAPID token: %w", ErrSigning)
	}
	return token, nil
}

// authorizationHeader produces the Authorization header value for one
// endpoint: `vapid t=<jwt>, k=<public key>`.
func authorizationHeader(endpoint string, creds *Credentials, now time.Time) (string, error) {
	audience, err := endpointAudience(endpoint)
	if err != nil {
		return "", err
	}
	token, err := signToken(audience, creds, now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("vapid t=%s, k=%s", token, creds.PublicKeyB64()), nil
}
