// server is a http server that listens to a unix socket or named pipe for windows.
// It lets the host application, which runs as a separate process, submit
// message notifications and report which of its windows has focus.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kolide/desktopnotification/ee/bridge"
	"github.com/kolide/desktopnotification/ee/desktop/notification"
	"github.com/kolide/desktopnotification/ee/focus"
)

const maxRequestBodySize = 64 * 1024

type NotificationRequest struct {
	Text string `json:"text"`
}

type NotificationResponse struct {
	Result notification.Result `json:"result"`
}

// FocusRequest reports the focused window of the host. A nil Window means
// no window of the host has focus.
type FocusRequest struct {
	Window *focus.Window `json:"window"`
}

type notifier interface {
	SendNotification(text string) notification.Result
}

type focusChanger interface {
	FocusWindowChanged(w *focus.Window)
}

type moduleDescriber interface {
	Describe() []bridge.ModuleDescription
}

type DesktopServer struct {
	logger       log.Logger
	server       *http.Server
	listener     net.Listener
	shutdownChan chan<- struct{}
	authToken    string

	notifier notifier
	focus    focusChanger
	modules  moduleDescriber
}

type Option func(*DesktopServer)

func WithNotifier(n notifier) Option {
	return func(s *DesktopServer) {
		s.notifier = n
	}
}

func WithFocusChanger(f focusChanger) Option {
	return func(s *DesktopServer) {
		s.focus = f
	}
}

func WithModules(m moduleDescriber) Option {
	return func(s *DesktopServer) {
		s.modules = m
	}
}

func New(logger log.Logger, authToken string, socketPath string, shutdownChan chan<- struct{}, opts ...Option) (*DesktopServer, error) {
	desktopServer := &DesktopServer{
		shutdownChan: shutdownChan,
		authToken:    authToken,
		logger:       log.With(logger, "component", "desktop_server"),
	}

	for _, opt := range opts {
		opt(desktopServer)
	}

	authedMux := http.NewServeMux()
	authedMux.HandleFunc("/shutdown", desktopServer.shutdownHandler)
	authedMux.HandleFunc("/ping", desktopServer.pingHandler)
	authedMux.HandleFunc("/notification", desktopServer.notificationHandler)
	authedMux.HandleFunc("/focus", desktopServer.focusHandler)
	authedMux.HandleFunc("/modules", desktopServer.modulesHandler)

	mux := http.NewServeMux()
	mux.Handle("/", desktopServer.authMiddleware(authedMux))

	desktopServer.server = &http.Server{
		Handler: mux,
	}

	// remove existing socket
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, err
	}

	listener, err := listener(socketPath)
	if err != nil {
		return nil, err
	}
	desktopServer.listener = listener

	desktopServer.server.RegisterOnShutdown(func() {
		// remove socket on shutdown
		if err := os.RemoveAll(socketPath); err != nil {
			level.Error(logger).Log("msg", "removing socket on shutdown", "err", err)
		}
	})

	return desktopServer, nil
}

func (s *DesktopServer) Serve() error {
	return s.server.Serve(s.listener)
}

func (s *DesktopServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *DesktopServer) shutdownHandler(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("{\"msg\": \"shutting down\"}"))
	s.shutdownChan <- struct{}{}
}

func (s *DesktopServer) pingHandler(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *DesktopServer) notificationHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if s.notifier == nil {
		level.Debug(s.logger).Log("msg", "notification requested but no notifier configured")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	var body NotificationRequest
	if err := decodeBody(req, &body); err != nil {
		level.Debug(s.logger).Log("msg", "decoding notification request", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	result := s.notifier.SendNotification(body.Text)
	s.writeJSON(w, NotificationResponse{Result: result})
}

func (s *DesktopServer) focusHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if s.focus == nil {
		level.Debug(s.logger).Log("msg", "focus change reported but no focus tracker configured")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	var body FocusRequest
	if err := decodeBody(req, &body); err != nil {
		level.Debug(s.logger).Log("msg", "decoding focus request", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.focus.FocusWindowChanged(body.Window)
	w.WriteHeader(http.StatusOK)
}

func (s *DesktopServer) modulesHandler(w http.ResponseWriter, req *http.Request) {
	modules := []bridge.ModuleDescription{}
	if s.modules != nil {
		modules = s.modules.Describe()
	}
	s.writeJSON(w, modules)
}

func (s *DesktopServer) writeJSON(w http.ResponseWriter, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		level.Error(s.logger).Log("msg", "marshalling response", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func decodeBody(req *http.Request, v interface{}) error {
	if req.Body == nil {
		return io.EOF
	}
	defer req.Body.Close()

	return json.NewDecoder(io.LimitReader(req.Body, maxRequestBodySize)).Decode(v)
}

func (s *DesktopServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := strings.Split(r.Header.Get("Authorization"), "Bearer ")

		if len(authHeader) != 2 {
			level.Debug(s.logger).Log("msg", "malformed authorization header")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if authHeader[1] != s.authToken {
			level.Debug(s.logger).Log("msg", "invalid authorization token")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
