// Package httpplugin serves the last rendered table over HTTP, together
// with a health endpoint.
package httpplugin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cdwhistler/netscan/device"
	"github.com/cdwhistler/netscan/logger"
	"github.com/cdwhistler/netscan/plugins"
)

var log = logger.GetLogger("plugins/http")

const shutdownTimeout = 2 * time.Second

// Plugin wraps plugin registration information
var Plugin = plugins.Plugin{
	Name:  "http",
	Setup: setupHTTP,
}

func init() {
	if err := plugins.RegisterPlugin(&Plugin); err != nil {
		log.Fatalf("%v", err)
	}
}

// Server answers from the scheduler snapshot, so Render has nothing to do.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

func NewHandler(ctl plugins.Controller) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(ctl))
	mux.HandleFunc("/devices", devicesHandler(ctl))
	return mux
}

func setupHTTP(ctl plugins.Controller, args ...string) (plugins.Sink, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("invalid number of arguments, want: 1 (listen address), got: %d", len(args))
	}
	ln, err := net.Listen("tcp", args[0])
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", args[0], err)
	}
	s := &Server{
		srv: &http.Server{Handler: NewHandler(ctl), ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("serve http: %v", err)
		}
	}()
	log.Printf("Serving device table on http://%s/devices", ln.Addr())
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) Render([]device.Device) error { return nil }

func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
