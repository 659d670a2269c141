package client

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

const (
	emulatorHost   = "10.0.2.2"
	genymotionHost = "10.0.3.2"
)

// BuildCandidates expands base into the ordered list of endpoints a
// Manager tries. Development hosts get the Android emulator alias first,
// then come the base itself, its secure variant and the emulator loopbacks
// on the base port. No endpoint appears twice.
func BuildCandidates(base string) ([]string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q needs a scheme and a host", base)
	}

	var candidates []string
	if isDevelopmentHost(u.Hostname()) {
		candidates = append(candidates, withHost(u, emulatorHost))
	}
	candidates = append(candidates, base)
	if secure, ok := secureVariant(u); ok {
		candidates = append(candidates, secure)
	}
	port := u.Port()
	if port == "" {
		port = defaultPort(u.Scheme)
	}
	for _, host := range []string{emulatorHost, genymotionHost} {
		candidates = append(candidates, "http://"+net.JoinHostPort(host, port))
	}
	return lo.Uniq(candidates), nil
}

func isDevelopmentHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || strings.HasPrefix(host, "192.168.")
}

func withHost(u *url.URL, host string) string {
	c := *u
	if port := u.Port(); port != "" {
		host = net.JoinHostPort(host, port)
	}
	c.Host = host
	return c.String()
}

func secureVariant(u *url.URL) (string, bool) {
	c := *u
	switch u.Scheme {
	case "http":
		c.Scheme = "https"
	case "ws":
		c.Scheme = "wss"
	default:
		return "", false
	}
	return c.String(), true
}

func defaultPort(scheme string) string {
	switch scheme {
	case "https", "wss":
		return "443"
	default:
		return "80"
	}
}
