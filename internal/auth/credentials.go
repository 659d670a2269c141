// Package auth resolves which credential a connection presented and
// verifies it.
package auth

import (
	"net/http"
	"strings"
)

// ClientClass selects the credential lookup order.
type ClientClass string

const (
	ClassWeb    ClientClass = "web"
	ClassMobile ClientClass = "mobile"

	// ClientClassHeader carries the class on the upgrade request.
	ClientClassHeader = "Client-Type"
)

// ParseClientClass treats anything but "mobile" as a web client.
func ParseClientClass(s string) ClientClass {
	if strings.EqualFold(strings.TrimSpace(s), string(ClassMobile)) {
		return ClassMobile
	}
	return ClassWeb
}

// Credentials holds every place a token may have been presented.
type Credentials struct {
	Header string
	InBand string
	Cookie string
}

// FromRequest collects the header and cookie credentials of r. The in-band
// token arrives later with the auth frame.
func FromRequest(r *http.Request, cookieName string) Credentials {
	var creds Credentials
	creds.Header = BearerToken(r.Header.Get("Authorization"))
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			creds.Cookie = c.Value
		}
	}
	return creds
}

// Resolve picks the first non-empty credential for class. Mobile apps
// cannot rely on cookies, so they prefer the header, then the in-band
// token. Browsers prefer the cookie.
func (c Credentials) Resolve(class ClientClass) string {
	order := []string{c.Cookie, c.Header, c.InBand}
	if class == ClassMobile {
		order = []string{c.Header, c.InBand, c.Cookie}
	}
	for _, token := range order {
		if token != "" {
			return token
		}
	}
	return ""
}

// BearerToken extracts the token of an "Authorization: Bearer" value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
