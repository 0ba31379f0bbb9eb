// Package server runs the host as a daemon on a unix socket.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/kardianos/service"

	"github.com/BingHanLin/vscode-oneDev-browser/pkg/config"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/host"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/onedev"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/rpc"
	"github.com/BingHanLin/vscode-oneDev-browser/pkg/settings"
)

// extra time a response may take beyond the oneDev request itself
const writeSlack = 5 * time.Second

type server struct {
	cfg    config.Config
	logger service.Logger
	stop   chan interface{}
	exit   chan interface{}
}

// Service returns a service for the host daemon.
func Service(cfg config.Config) service.Service {
	sc := service.Config{
		Name:        "onedev-browser",
		DisplayName: "onedev-browser",
		Description: "oneDev pull request and issue browser host",
		Arguments:   []string{"host", "run"},
		Option: service.KeyValue{
			"UserService": true, // run as current user, not root
			"RunAtLoad":   true, // run at boot
		},
	}

	server := server{
		cfg:    cfg,
		logger: service.ConsoleLogger,
		stop:   make(chan interface{}), // stop the server
		exit:   make(chan interface{}), // server's ready to exit
	}

	svc, err := service.New(&server, &sc)
	if err != nil {
		log.Fatalf("couldn't create daemon: %s", err.Error())
	}
	if lg, err := svc.Logger(nil); err == nil {
		server.logger = lg
	}
	return svc
}

func (s *server) Start(service.Service) error {
	if len(s.cfg.SocketPath) == 0 {
		return fmt.Errorf("no socket_path configured in %s", config.Filename)
	}
	if len(s.cfg.SettingsPath) == 0 {
		return fmt.Errorf("no settings_path configured in %s", config.Filename)
	}

	socketPath, err := s.cfg.ExpandedSocketPath()
	if err != nil {
		return err
	}
	settingsPath, err := s.cfg.ExpandedSettingsPath()
	if err != nil {
		return err
	}
	store, err := settings.NewFileStore(settingsPath)
	if err != nil {
		return err
	}

	ctrl := host.NewController(store, onedev.NewClient(s.cfg.Timeout()), s.logger)
	handler := rpc.NewHandler(ctrl, s.logger)

	sock, err := listen(socketPath)
	if err != nil {
		return err
	}

	go s.run(sock, handler)

	return nil
}

func (s *server) Stop(service.Service) error {
	// these two channels allows the main goroutine to shut down cleanly.
	close(s.stop)
	<-s.exit
	return nil
}

// listen on a unix socket, replacing a stale socket file left behind by a
// previous run.
func listen(socketPath string) (net.Listener, error) {
	sock, err := net.Listen("unix", socketPath)
	if err == nil {
		return sock, nil
	}
	if _, statErr := os.Stat(socketPath); statErr != nil {
		return nil, err
	}
	if conn, dialErr := net.Dial("unix", socketPath); dialErr == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("a host is already listening on %s", socketPath)
	}
	if rmErr := os.Remove(socketPath); rmErr != nil {
		return nil, err
	}
	return net.Listen("unix", socketPath)
}

// NewRouter builds the http router for a handler, with access logging.
func NewRouter(h *rpc.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	h.Mount(r)
	return r
}

// run the host on the configured unix socket until the service stops
func (s *server) run(sock net.Listener, h *rpc.Handler) {
	var writeTimeout time.Duration
	if t := s.cfg.Timeout(); t > 0 {
		writeTimeout = t + writeSlack
	}

	server := &http.Server{
		Handler:      NewRouter(h),
		ReadTimeout:  time.Second,
		WriteTimeout: writeTimeout,
	}

	defer func() {
		_ = os.Remove(sock.Addr().String())
	}()

	go func() {
		_ = s.logger.Infof("server started on %s", sock.Addr())
		if err := server.Serve(sock); err != nil {
			if err != http.ErrServerClosed {
				_ = s.logger.Errorf("server error: %s", err)
			}
		}
	}()

	// wait for service to be stopped
	<-s.stop

	_ = s.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		_ = s.logger.Errorf("server shutdown error: %s", err)
	}

	close(s.exit) // signal service.Stop that we're done
}
