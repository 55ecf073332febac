package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/kolide/desktopnotification/ee/bridge"
	"github.com/kolide/desktopnotification/ee/desktop/notification"
	"github.com/kolide/desktopnotification/ee/focus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAuthHeader = "test-auth-header"

type recordingNotifier struct {
	mu     sync.Mutex
	texts  []string
	result notification.Result
}

func (r *recordingNotifier) SendNotification(text string) notification.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.result
}

func TestDesktopServer_authMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		loggedErr  string
		authHeader string
	}{
		{
			name:      "malformed_authorization_header",
			loggedErr: "malformed authorization header",
		},
		{
			name:       "invalid_authorization_token",
			loggedErr:  "invalid authorization token",
			authHeader: "Bearer invalid",
		},
		{
			name:       "valid_token",
			authHeader: fmt.Sprintf("Bearer %s", validAuthHeader),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var logBytes bytes.Buffer
			server, _ := testServer(t, validAuthHeader, testSocketPath(t), &logBytes)

			req, err := http.NewRequest("GET", "https://127.0.0.1:8080", nil)
			require.NoError(t, err)

			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			handler := server.authMiddleware(testHandler())
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if tt.loggedErr != "" {
				assert.Equal(t, http.StatusUnauthorized, rr.Code)
				assert.Contains(t, logBytes.String(), tt.loggedErr)
			} else {
				assert.Equal(t, http.StatusOK, rr.Code)
			}

			require.NoError(t, server.Shutdown(context.Background()))
		})
	}
}

func TestDesktopServer_shutdownHandler(t *testing.T) {
	t.Parallel()

	var logBytes bytes.Buffer
	server, shutdownChan := testServer(t, validAuthHeader, testSocketPath(t), &logBytes)

	go func() {
		<-shutdownChan
	}()

	req, err := http.NewRequest("", "", nil)
	require.NoError(t, err)

	handler := http.HandlerFunc(server.shutdownHandler)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Empty(t, logBytes.String())
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, server.Shutdown(context.Background()))
}

func TestDesktopServer_notificationHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		method         string
		body           string
		noNotifier     bool
		result         notification.Result
		expectedStatus int
		expectedResult string
		expectedTexts  []string
	}{
		{
			name:           "submitted",
			method:         http.MethodPost,
			body:           `{"text":"hello"}`,
			result:         notification.ResultSubmitted,
			expectedStatus: http.StatusOK,
			expectedResult: "submitted",
			expectedTexts:  []string{"hello"},
		},
		{
			name:           "suppressed",
			method:         http.MethodPost,
			body:           `{"text":"hi"}`,
			result:         notification.ResultSuppressed,
			expectedStatus: http.StatusOK,
			expectedResult: "suppressed",
			expectedTexts:  []string{"hi"},
		},
		{
			name:           "empty_text",
			method:         http.MethodPost,
			body:           `{}`,
			result:         notification.ResultSubmitted,
			expectedStatus: http.StatusOK,
			expectedResult: "submitted",
			expectedTexts:  []string{""},
		},
		{
			name:           "malformed_body",
			method:         http.MethodPost,
			body:           `{"text":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "wrong_method",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "no_notifier",
			method:         http.MethodPost,
			body:           `{"text":"hello"}`,
			noNotifier:     true,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := &recordingNotifier{result: tt.result}
			var opts []Option
			if !tt.noNotifier {
				opts = append(opts, WithNotifier(n))
			}

			var logBytes bytes.Buffer
			server, _ := testServer(t, validAuthHeader, testSocketPath(t), &logBytes, opts...)

			req := httptest.NewRequest(tt.method, "/notification", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			http.HandlerFunc(server.notificationHandler).ServeHTTP(rr, req)

			require.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expectedTexts, n.texts)

			if tt.expectedResult != "" {
				var raw map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
				assert.Equal(t, tt.expectedResult, raw["result"])
			}

			require.NoError(t, server.Shutdown(context.Background()))
		})
	}
}

func TestDesktopServer_focusHandler(t *testing.T) {
	t.Parallel()

	tracker := focus.NewTracker()

	var logBytes bytes.Buffer
	server, _ := testServer(t, validAuthHeader, testSocketPath(t), &logBytes, WithFocusChanger(tracker))
	handler := http.HandlerFunc(server.focusHandler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/focus", strings.NewReader(`{"window":{"id":"main","title":"Chat"}}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, &focus.Window{ID: "main", Title: "Chat"}, tracker.FocusWindow())

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/focus", strings.NewReader(`{"window":null}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, tracker.Focused())

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/focus", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	require.NoError(t, server.Shutdown(context.Background()))
}

type staticModule struct{}

func (staticModule) ModuleName() string                        { return "Static" }
func (staticModule) MethodsToExport() []bridge.ModuleMethod    { return []bridge.ModuleMethod{} }
func (staticModule) ConstantsToExport() map[string]interface{} { return map[string]interface{}{} }
func (staticModule) SetBridge(*bridge.Bridge)                  {}

func TestDesktopServer_modulesHandler(t *testing.T) {
	t.Parallel()

	b := bridge.New()
	require.NoError(t, b.RegisterModule(staticModule{}))

	var logBytes bytes.Buffer
	server, _ := testServer(t, validAuthHeader, testSocketPath(t), &logBytes, WithModules(b))

	rr := httptest.NewRecorder()
	http.HandlerFunc(server.modulesHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/modules", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var modules []bridge.ModuleDescription
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &modules))
	assert.Equal(t, []bridge.ModuleDescription{
		{Name: "Static", Methods: []string{}, Constants: map[string]interface{}{}},
	}, modules)

	require.NoError(t, server.Shutdown(context.Background()))
}

func testHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.String()))
	})
}

func testServer(t *testing.T, authHeader, socketPath string, logBytes *bytes.Buffer, opts ...Option) (*DesktopServer, chan struct{}) {
	shutdownChan := make(chan struct{})

	server, err := New(log.NewLogfmtLogger(logBytes), authHeader, socketPath, shutdownChan, opts...)
	require.NoError(t, err)
	return server, shutdownChan
}

func testSocketPath(t *testing.T) string {
	socketFileName := strings.Replace(t.Name(), "/", "_", -1)

	// using t.TempDir() creates a file path too long for a unix socket
	socketPath := filepath.Join(os.TempDir(), socketFileName)
	// truncate socket path to max length
	if len(socketPath) > 103 {
		socketPath = socketPath[:103]
	}

	if runtime.GOOS == "windows" {
		socketPath = fmt.Sprintf(`\\.\pipe\%s`, socketFileName)
	}

	t.Cleanup(func() {
		require.NoError(t, os.RemoveAll(socketPath))
	})

	return socketPath
}
