package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString(payload)
	return header + "." + body + ".signature-not-checked"
}

func TestDecodeUserToken(t *testing.T) {
	tests := []struct {
		name        string
		claims      map[string]any
		wantUser    string
		wantCompany string
	}{
		{
			name:        "camelCase fields",
			claims:      map[string]any{"userId": "user_1", "companyId": "biz_1"},
			wantUser:    "user_1",
			wantCompany: "biz_1",
		},
		{
			name:        "snake_case fields",
			claims:      map[string]any{"user_id": "user_2", "company_id": "biz_2"},
			wantUser:    "user_2",
			wantCompany: "biz_2",
		},
		{
			name:        "sub claim fallback",
			claims:      map[string]any{"sub": "user_3", "companyId": "biz_3"},
			wantUser:    "user_3",
			wantCompany: "biz_3",
		},
		{
			name:        "camelCase wins over sub",
			claims:      map[string]any{"userId": "user_4", "sub": "other", "company_id": "biz_4"},
			wantUser:    "user_4",
			wantCompany: "biz_4",
		},
		{
			name:     "user only",
			claims:   map[string]any{"sub": "user_5"},
			wantUser: "user_5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := DecodeUserToken(makeToken(t, tt.claims))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if identity.UserID != tt.wantUser {
				t.Errorf("user: got %q, want %q", identity.UserID, tt.wantUser)
			}
			if identity.CompanyID != tt.wantCompany {
				t.Errorf("company: got %q, want %q", identity.CompanyID, tt.wantCompany)
			}
		})
	}
}

func TestDecodeUserTokenRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not a jwt", "hello world"},
		{"two segments", "abc.def"},
		{"four segments", "a.b.c.d"},
		{"payload not base64", "head.!!!!.sig"},
		{"payload not json", "head." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".sig"},
		{"no id fields", makeTokenRaw(map[string]any{"email": "a@b.c", "iat": 1})},
		{"non-string ids", makeTokenRaw(map[string]any{"userId": 42, "companyId": true})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUserToken(tt.raw)
			if !errors.Is(err, ErrNoIdentity) {
				t.Fatalf("expected ErrNoIdentity, got %v", err)
			}
		})
	}
}

func makeTokenRaw(claims map[string]any) string {
	payload, _ := json.Marshal(claims)
	return "head." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestDecodeUserTokenPaddedSegment(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{"userId": "user_p", "companyId": "biz_p"})
	token := "head." + base64.URLEncoding.EncodeToString(payload) + ".sig"

	identity, err := DecodeUserToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != "user_p" {
		t.Errorf("got %q", identity.UserID)
	}
}

func TestTokenFromRequest(t *testing.T) {
	newReq := func() *http.Request {
		req, _ := http.NewRequest("GET", "/", nil)
		return req
	}

	t.Run("primary header", func(t *testing.T) {
		req := newReq()
		req.Header.Set("X-Whop-User-Token", "tok1")
		req.Header.Set("Authorization", "Bearer tok3")
		if got := TokenFromRequest(req); got != "tok1" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("secondary header", func(t *testing.T) {
		req := newReq()
		req.Header.Set("X-Whop-Token", "tok2")
		if got := TokenFromRequest(req); got != "tok2" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("bearer fallback", func(t *testing.T) {
		req := newReq()
		req.Header.Set("Authorization", "Bearer tok3")
		if got := TokenFromRequest(req); got != "tok3" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("absent", func(t *testing.T) {
		req := newReq()
		if got := TokenFromRequest(req); got != "" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("non-bearer authorization ignored", func(t *testing.T) {
		req := newReq()
		req.Header.Set("Authorization", "Basic abc")
		if got := TokenFromRequest(req); got != "" {
			t.Errorf("got %q", got)
		}
	})
}
