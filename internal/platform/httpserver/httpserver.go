// Package httpserver builds the process HTTP server.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// Timeouts bounds each phase of a connection. Zero fields take defaults.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
}

// Write covers multipart image uploads and the OCR round trip behind them.
var defaultTimeouts = Timeouts{
	ReadHeader: 5 * time.Second,
	Read:       30 * time.Second,
	Write:      60 * time.Second,
	Idle:       120 * time.Second,
}

// New returns a server whose internal errors (TLS handshakes, panics in
// net/http itself) go to logger.
func New(addr string, handler http.Handler, logger *slog.Logger, t Timeouts) *http.Server {
	t = t.withDefaults()
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: t.ReadHeader,
		ReadTimeout:       t.Read,
		WriteTimeout:      t.Write,
		IdleTimeout:       t.Idle,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

func (t Timeouts) withDefaults() Timeouts {
	if t.ReadHeader <= 0 {
		t.ReadHeader = defaultTimeouts.ReadHeader
	}
	if t.Read <= 0 {
		t.Read = defaultTimeouts.Read
	}
	if t.Write <= 0 {
		t.Write = defaultTimeouts.Write
	}
	if t.Idle <= 0 {
		t.Idle = defaultTimeouts.Idle
	}
	return t
}
