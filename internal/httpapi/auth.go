package httpapi

import (
	"crypto/subtle"
	"net/http"
)

// Authorizer decides whether a request may reach a protected endpoint. The
// variant is picked once at startup: open when no API key is configured,
// token-checked otherwise.
type Authorizer interface {
	Authorize(r *http.Request) bool
}

// NewAuthorizer returns the open authorizer for an empty key and the
// token-checked one otherwise.
func NewAuthorizer(apiKey string) Authorizer {
	if apiKey == "" {
		return openAuthorizer{}
	}
	return tokenAuthorizer{key: []byte(apiKey)}
}

type openAuthorizer struct{}

func (openAuthorizer) Authorize(*http.Request) bool { return true }

// tokenAuthorizer accepts the key via the X-API-Key header or the api_key
// query parameter, compared case-sensitively in constant time.
type tokenAuthorizer struct {
	key []byte
}

func (a tokenAuthorizer) Authorize(r *http.Request) bool {
	provided := r.Header.Get("X-API-Key")
	if provided == "" {
		provided = r.URL.Query().Get("api_key")
	}
	return subtle.ConstantTimeCompare([]byte(provided), a.key) == 1
}
