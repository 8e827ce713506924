package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Aman-CERP/amansuggest/internal/errors"
)

// connDeadline bounds one request/response exchange. Indexing can take a
// while, so it is generous.
const connDeadline = 5 * time.Minute

// RequestHandler handles decoded RPC requests.
type RequestHandler interface {
	Suggest(ctx context.Context, params SuggestParams) (SuggestResult, error)
	SearchEvent(params SearchEventParams) error
	Select(params SelectParams) error
	Refresh(params RefreshParams) error
	Delete(params DeleteParams) error
	Index(ctx context.Context, params IndexParams) (IndexResult, error)
	Status() StatusResult
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	return &Server{socketPath: socketPath}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// A previous daemon may have left its socket behind.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("Server listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("Accept error", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// handleConnection processes a single request on conn.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(connDeadline)); err != nil {
		slog.Warn("Failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	_ = encoder.Encode(s.safeHandle(ctx, req))
}

// safeHandle turns a handler panic into an internal error response so one
// bad request cannot take the daemon down.
func (s *Server) safeHandle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("RPC handler panicked",
				slog.String("method", req.Method),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			resp = NewErrorResponse(req.ID, ErrCodeInternalError,
				fmt.Sprintf("internal error handling %s", req.Method))
		}
	}()
	return s.handleRequest(ctx, req)
}

// handleRequest dispatches a request to the handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.Method == MethodPing {
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	}
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no request handler configured")
	}

	switch req.Method {
	case MethodStatus:
		st := s.handler.Status()
		st.Running = true
		st.PID = os.Getpid()
		st.Uptime = s.uptime()
		return NewSuccessResponse(req.ID, st)

	case MethodSuggest:
		var p SuggestParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		res, err := s.handler.Suggest(ctx, p)
		return result(req.ID, res, err)

	case MethodSearchEvent:
		var p SearchEventParams
		if resp, ok := decodeParams(req, &p, nil); !ok {
			return resp
		}
		return ack(req.ID, s.handler.SearchEvent(p))

	case MethodSelect:
		var p SelectParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		return ack(req.ID, s.handler.Select(p))

	case MethodRefresh:
		var p RefreshParams
		if resp, ok := decodeParams(req, &p, nil); !ok {
			return resp
		}
		return ack(req.ID, s.handler.Refresh(p))

	case MethodDelete:
		var p DeleteParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		return ack(req.ID, s.handler.Delete(p))

	case MethodIndex:
		var p IndexParams
		if resp, ok := decodeParams(req, &p, p.Validate); !ok {
			return resp
		}
		res, err := s.handler.Index(ctx, p)
		return result(req.ID, res, err)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// decodeParams unmarshals req.Params into v and runs validate. Missing
// params decode as the zero value.
func decodeParams(req Request, v any, validate func() error) (Response, bool) {
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, v); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
		}
	}
	if validate != nil {
		if err := validate(); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error()), false
		}
	}
	return Response{}, true
}

func result[T any](id string, v T, err error) Response {
	if err != nil {
		return errorResponse(id, err)
	}
	return NewSuccessResponse(id, v)
}

func ack(id string, err error) Response {
	if err != nil {
		return errorResponse(id, err)
	}
	return NewSuccessResponse(id, OKResult{OK: true})
}

// errorResponse maps domain error codes onto RPC codes.
func errorResponse(id string, err error) Response {
	switch errors.GetCode(err) {
	case errors.ErrCodeUnknownProject:
		return NewErrorResponse(id, ErrCodeUnknownProject, err.Error())
	case errors.ErrCodeInvalidInput:
		return NewErrorResponse(id, ErrCodeInvalidParams, err.Error())
	case errors.ErrCodeIndexUnavailable, errors.ErrCodeIndexLocked:
		return NewErrorResponse(id, ErrCodeIndexFailed, err.Error())
	default:
		return NewErrorResponse(id, ErrCodeInternalError, err.Error())
	}
}

func (s *Server) uptime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.started).Round(time.Second).String()
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
