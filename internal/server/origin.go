package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy is the normalized WebSocket origin allow-list.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
	log      *slog.Logger
}

func newOriginPolicy(origins []string, log *slog.Logger) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{}, len(origins)), log: log}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			p.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn("Ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		p.allowed[normalized] = struct{}{}
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (p *originPolicy) allows(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return false
	}
	normalized, ok := normalizeOrigin(header)
	if !ok {
		return false
	}
	if p.allowAll {
		return true
	}
	_, exists := p.allowed[normalized]
	return exists
}

// checkOrigin is the upgrader hook.
func (p *originPolicy) checkOrigin(r *http.Request) bool {
	if p.allows(r) {
		return true
	}
	p.log.Warn("Blocked WebSocket connection from disallowed origin", "origin", r.Header.Get("Origin"))
	return false
}
