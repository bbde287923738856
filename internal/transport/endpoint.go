package transport

import (
	"fmt"
	"net/url"

	"attendance-kiosk/config"
)

// SelectEndpoint picks the backend WebSocket URL. An explicit endpoint wins;
// otherwise a secure kiosk uses the configured wss:// endpoint and a plain one
// connects to ws://<host>:<port><path>.
func SelectEndpoint(cfg config.TransportConfig) (string, error) {
	var raw string
	switch {
	case cfg.Endpoint != "":
		raw = cfg.Endpoint
	case cfg.Secure:
		raw = cfg.SecureEndpoint
	default:
		raw = fmt.Sprintf("ws://%s:%d%s", cfg.Host, cfg.Port, cfg.Path)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid backend endpoint %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ws":
		if cfg.Secure && cfg.Endpoint == "" {
			return "", fmt.Errorf("secure transport requires a wss:// endpoint, got %q", raw)
		}
	case "wss":
	default:
		return "", fmt.Errorf("backend endpoint %q must use ws:// or wss://", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("backend endpoint %q has no host", raw)
	}
	return u.String(), nil
}
