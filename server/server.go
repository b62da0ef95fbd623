// Package server runs the HTTP listener with optional TLS, either from
// certificate files or via ACME autocert.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

const (
	DefaultPort    = "8080"
	DefaultTLSMode = "auto"

	TLSModeAuto   = "auto"
	TLSModeManual = "manual"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type ServerTLSAutoCert struct {
	CacheDir string
	Domains  []string
	Email    string
}

type ServerTLS struct {
	Enabled  bool
	Mode     string
	AutoCert *ServerTLSAutoCert
	CertFile string
	KeyFile  string
}

type Server struct {
	Port string
	Host string
	TLS  ServerTLS
}

// Run serves the handler until ctx is cancelled, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context, handler http.Handler) error {
	if srv.TLS.Enabled {
		return srv.runTLS(ctx, handler)
	}

	address := net.JoinHostPort(srv.Host, srv.Port)

	httpServer := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	slog.InfoContext(ctx, "starting http server", "address", "http://"+address)

	return serveAndWait(ctx, httpServer, httpServer.ListenAndServe)
}

func (srv *Server) runTLS(ctx context.Context, handler http.Handler) error {
	switch srv.TLS.Mode {
	case TLSModeAuto:
		return srv.runAutoCert(ctx, handler)
	case TLSModeManual:
		return srv.runManualCert(ctx, handler)
	default:
		return fmt.Errorf("unsupported tls mode %q", srv.TLS.Mode)
	}
}

func (srv *Server) runAutoCert(ctx context.Context, handler http.Handler) error {
	if srv.TLS.AutoCert == nil || len(srv.TLS.AutoCert.Domains) == 0 {
		return errors.New("autocert tls mode requires at least one domain")
	}

	certManager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(srv.TLS.AutoCert.CacheDir),
		HostPolicy: autocert.HostWhitelist(srv.TLS.AutoCert.Domains...),
		Email:      srv.TLS.AutoCert.Email,
	}

	// Port 80 answers ACME HTTP-01 challenges and redirects everything
	// else to HTTPS.
	challengeServer := &http.Server{
		Addr:              net.JoinHostPort(srv.Host, "80"),
		Handler:           certManager.HTTPHandler(nil),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		err := challengeServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "failed to run acme challenge server", "error", err)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		err := challengeServer.Shutdown(shutdownCtx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to shut down acme challenge server", "error", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(srv.Host, "443"),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		TLSConfig:         certManager.TLSConfig(),
	}

	slog.InfoContext(ctx, "starting https server", "address", domainsToHTTPSAddress(srv.TLS.AutoCert.Domains))

	return serveAndWait(ctx, httpServer, func() error {
		return httpServer.ListenAndServeTLS("", "")
	})
}

func (srv *Server) runManualCert(ctx context.Context, handler http.Handler) error {
	if srv.TLS.CertFile == "" || srv.TLS.KeyFile == "" {
		return errors.New("manual tls mode requires cert and key files")
	}

	address := net.JoinHostPort(srv.Host, srv.Port)

	httpServer := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	slog.InfoContext(ctx, "starting https server", "address", "https://"+address)

	return serveAndWait(ctx, httpServer, func() error {
		return httpServer.ListenAndServeTLS(srv.TLS.CertFile, srv.TLS.KeyFile)
	})
}

func serveAndWait(ctx context.Context, httpServer *http.Server, listen func() error) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- listen()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to listen and serve: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

func domainsToHTTPSAddress(domains []string) string {
	addresses := make([]string, 0, len(domains))

	for _, domain := range domains {
		addresses = append(addresses, "https://"+domain)
	}

	return strings.Join(addresses, ", ")
}
