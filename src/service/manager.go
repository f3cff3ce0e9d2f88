// Package service runs the long-lived parts of the daemon.
package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Module is a component that can be started and stopped.
type Module interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// Manager starts modules in order and stops them in reverse.
type Manager struct {
	mu      sync.Mutex
	modules []Module
	started []Module
	log     *zap.Logger
}

func NewManager(log *zap.Logger, mods ...Module) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{modules: mods, log: log}
}

// Add registers a module before Start.
func (m *Manager) Add(mod Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started != nil {
		return fmt.Errorf("service.Manager: cannot add %s after start", mod.Name())
	}
	m.modules = append(m.modules, mod)
	return nil
}

// Start starts every module. If one fails, the ones already running are
// stopped again.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started != nil {
		return errors.New("service.Manager already started")
	}

	started := make([]Module, 0, len(m.modules))
	for _, mod := range m.modules {
		if mod == nil {
			continue
		}
		if err := mod.Start(ctx); err != nil {
			for i := len(started) - 1; i >= 0; i-- {
				started[i].Stop(ctx)
			}
			return fmt.Errorf("module %s failed: %w", mod.Name(), err)
		}
		m.log.Info("module started", zap.String("module", mod.Name()))
		started = append(started, mod)
	}
	m.started = started
	return nil
}

// Stop shuts down the started modules in reverse order.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.started) - 1; i >= 0; i-- {
		m.started[i].Stop(ctx)
		m.log.Info("module stopped", zap.String("module", m.started[i].Name()))
	}
	m.started = nil
}

// HTTPServer runs an http.Server as a module.
type HTTPServer struct {
	srv  *http.Server
	log  *zap.Logger
	errc chan error
}

// NewHTTPServer serves h on addr, over TLS when tlsCfg is set.
func NewHTTPServer(addr string, h http.Handler, tlsCfg *tls.Config, log *zap.Logger) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			TLSConfig:         tlsCfg,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log:  log,
		errc: make(chan error, 1),
	}
}

func (s *HTTPServer) Name() string { return "http" }

func (s *HTTPServer) Start(context.Context) error {
	go func() {
		s.log.Info("http listening", zap.String("addr", s.srv.Addr), zap.Bool("tls", s.srv.TLSConfig != nil))
		var err error
		if s.srv.TLSConfig != nil {
			err = s.srv.ListenAndServeTLS("", "")
		} else {
			err = s.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errc <- err
		}
		close(s.errc)
	}()
	return nil
}

// Err reports a listener failure; it is closed when the server stops.
func (s *HTTPServer) Err() <-chan error { return s.errc }

func (s *HTTPServer) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown", zap.Error(err))
	}
}

// Func adapts start and stop functions into a Module.
type Func struct {
	ModuleName string
	OnStart    func(ctx context.Context) error
	OnStop     func(ctx context.Context)
}

func (f Func) Name() string { return f.ModuleName }

func (f Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

func (f Func) Stop(ctx context.Context) {
	if f.OnStop != nil {
		f.OnStop(ctx)
	}
}
