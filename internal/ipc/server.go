package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"hindsight/internal/daemon"
	"hindsight/internal/keymgr"
	"hindsight/internal/logging"
)

// SocketName is the control socket filename inside the data directory.
const SocketName = "hindsight.sock"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, keys *keymgr.Manager, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	handler := &handlers{daemon: d, keys: keys, logger: logger}
	if err := rpcServer.RegisterName("Hindsight", handler); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type handlers struct {
	daemon *daemon.Daemon
	keys   *keymgr.Manager
	logger *slog.Logger
}

func (h *handlers) log() *slog.Logger {
	return h.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (h *handlers) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.Running = h.daemon.Running()
	resp.PID = os.Getpid()
	resp.LockPath = h.daemon.LockPath()
	if record, ok := h.daemon.Status(); ok {
		resp.HasStatus = true
		resp.Capture = record
	}
	return nil
}

func (h *handlers) Stop(_ StopRequest, resp *StopResponse) error {
	h.log().Debug("daemon stop requested")
	resp.Stopped = h.daemon.Running()
	h.daemon.Stop()
	if resp.Stopped {
		h.log().Info("daemon stopped via IPC",
			logging.String(logging.FieldEventType, "daemon_stop"))
	}
	return nil
}

func (h *handlers) LockInfo(_ LockInfoRequest, resp *LockInfoResponse) error {
	if h.keys == nil {
		return errors.New("key manager unavailable")
	}
	state := h.keys.LockInfo()
	resp.Fails = state.Fails
	resp.LastFail = state.LastFail
	resp.LockUntil = state.LockUntil
	resp.Reset = state.Reset
	resp.Locked = state.Locked(time.Now())
	return nil
}
