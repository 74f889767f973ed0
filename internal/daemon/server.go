// Package daemon exposes a running agent over a local Unix domain
// socket: a small HTTP control API the CLI talks to instead of
// embedding the whole engine in every subcommand invocation.
package daemon

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shurlinet/syncmesh/internal/agent"
)

const (
	socketFileName = "daemon.sock"
	cookieFileName = "daemon.cookie"
	shutdownGrace  = 3 * time.Second
)

// Server wraps a running Agent with a Unix-socket HTTP API.
type Server struct {
	agent *agent.Agent
	log   *slog.Logger

	socketPath string
	cookiePath string
	cookie     string

	listener net.Listener
	http     *http.Server
}

// SocketPath returns the path a client should dial to reach dataDir's daemon.
func SocketPath(dataDir string) string {
	return filepath.Join(dataDir, socketFileName)
}

// CookiePath returns the path a client should read the bearer cookie from.
func CookiePath(dataDir string) string {
	return filepath.Join(dataDir, cookieFileName)
}

// New starts listening on dataDir's socket and returns a Server ready
// to Serve. It fails with ErrDaemonAlreadyRunning if a live daemon
// already owns the socket.
func New(a *agent.Agent, dataDir string, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}

	socketPath := SocketPath(dataDir)
	cookiePath := CookiePath(dataDir)

	if err := checkStaleSocket(socketPath); err != nil {
		return nil, err
	}

	// Umask before Listen so the socket is never briefly
	// group/world-accessible between creation and the Chmod a
	// separate call would otherwise require.
	old := syscall.Umask(0077)
	defer syscall.Umask(old)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: listen on %s: %w", socketPath, err)
	}

	cookie, err := generateCookie()
	if err != nil {
		ln.Close()
		os.Remove(socketPath)
		return nil, fmt.Errorf("daemon: generate cookie: %w", err)
	}
	if err := os.WriteFile(cookiePath, []byte(cookie), 0600); err != nil {
		ln.Close()
		os.Remove(socketPath)
		return nil, fmt.Errorf("daemon: write cookie file: %w", err)
	}

	s := &Server{
		agent:      a,
		log:        log,
		socketPath: socketPath,
		cookiePath: cookiePath,
		cookie:     cookie,
		listener:   ln,
	}
	s.http = &http.Server{Handler: authMiddleware(cookie, s.routes())}
	return s, nil
}

// checkStaleSocket removes socketPath if it exists but nothing is
// listening on it anymore (e.g. the previous daemon crashed without
// cleaning up), and returns ErrDaemonAlreadyRunning if a live daemon
// answers instead.
func checkStaleSocket(socketPath string) error {
	if _, err := os.Stat(socketPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("daemon: stat %s: %w", socketPath, err)
	}

	conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
	if err != nil {
		// Socket file exists but nothing answers: stale, safe to remove.
		return os.Remove(socketPath)
	}
	conn.Close()
	return ErrDaemonAlreadyRunning
}

func generateCookie() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Serve blocks, accepting connections until Stop is called.
func (s *Server) Serve() error {
	err := s.http.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP server and removes the socket
// and cookie files.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	err := s.http.Shutdown(ctx)
	os.Remove(s.socketPath)
	os.Remove(s.cookiePath)
	return err
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/node", s.handleGetNode)
	mux.HandleFunc("POST /v1/blobs", s.handleCreateBlob)
	mux.HandleFunc("POST /v1/blobs/fetch", s.handleFetchBlob)
	mux.HandleFunc("POST /v1/gossip/ticket", s.handleCreateGossipTicket)
	mux.HandleFunc("POST /v1/gossip/join", s.handleJoinGossip)
	mux.HandleFunc("GET /v1/clipboard/sharing", s.handleGetClipboardSharing)
	mux.HandleFunc("PUT /v1/clipboard/sharing", s.handleSetClipboardSharing)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
