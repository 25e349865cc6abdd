package server

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/crypto/acme/autocert"

	"github.com/latency-space/porkchop/internal/config"
)

// newCertManager creates an autocert manager restricted to the configured
// hosts, caching certificates under cfg.CacheDir.
func newCertManager(cfg config.TLSConfig) (*autocert.Manager, error) {
	if len(cfg.Hosts) == 0 {
		return nil, fmt.Errorf("no TLS hosts configured")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create certificate cache %s: %w", cfg.CacheDir, err)
	}

	return &autocert.Manager{
		Cache:      autocert.DirCache(cfg.CacheDir),
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Hosts...),
	}, nil
}

func tlsConfig(manager *autocert.Manager) *tls.Config {
	c := manager.TLSConfig()
	c.MinVersion = tls.VersionTLS12
	c.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256}
	return c
}

// challengeHandler answers ACME HTTP-01 challenges and redirects everything
// else to HTTPS.
func challengeHandler(manager *autocert.Manager) http.Handler {
	return manager.HTTPHandler(nil)
}
