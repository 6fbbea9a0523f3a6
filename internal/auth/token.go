// Package auth extracts caller identity from the Whop-injected user token.
//
// The token is a JWT whose payload is decoded WITHOUT signature
// verification: the upstream Whop edge verifies it before injecting the
// header, the request arrives over HTTPS inside the embedded-app context,
// and the platform does not publish a verification key. The trust boundary
// therefore sits at the platform proxy, not here.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrNoIdentity is returned when no usable identity can be extracted from a
// request.
var ErrNoIdentity = errors.New("no identity in token")

// Identity is the decoded caller identity.
type Identity struct {
	UserID    string
	CompanyID string
	Email     string
}

// tokenHeaders are checked in order for the platform token.
var tokenHeaders = []string{"X-Whop-User-Token", "X-Whop-Token"}

// TokenFromRequest returns the raw platform token from the request headers,
// falling back to a bearer Authorization header. Empty string if absent.
func TokenFromRequest(r *http.Request) string {
	for _, name := range tokenHeaders {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// DecodeUserToken decodes the payload segment of a platform token and maps
// the identity fields. The payload may use camelCase, snake_case, or the
// standard `sub` claim for the user ID.
func DecodeUserToken(raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrNoIdentity
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, ErrNoIdentity
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		// Some issuers pad their segments.
		payload, err = base64.URLEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, ErrNoIdentity
		}
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrNoIdentity
	}

	identity := &Identity{
		UserID:    firstString(claims, "userId", "user_id", "sub"),
		CompanyID: firstString(claims, "companyId", "company_id"),
		Email:     firstString(claims, "email"),
	}

	if identity.UserID == "" && identity.CompanyID == "" {
		return nil, ErrNoIdentity
	}

	return identity, nil
}

// IdentityFromRequest combines header extraction and decoding.
func IdentityFromRequest(r *http.Request) (*Identity, error) {
	return DecodeUserToken(TokenFromRequest(r))
}

func firstString(claims map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
