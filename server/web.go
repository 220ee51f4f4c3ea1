package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/juju/errors"

	"github.com/mbocsi/dartlink/proto"
)

// StatusAPI is a read mostly HTTP view of a running Server.
type StatusAPI struct {
	addr   string
	srv    *Server
	mu     sync.Mutex
	server *http.Server
}

func NewStatusAPI(addr string, srv *Server) *StatusAPI {
	return &StatusAPI{addr: addr, srv: srv}
}

func (a *StatusAPI) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.HandleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", a.HandleSessions)
		r.Get("/transports", a.HandleTransports)
		r.Get("/functions", a.HandleFunctions)
		r.Get("/robot/state", a.HandleRobotState)
		r.Post("/functions/{name}", a.HandleCall)
	})
	return r
}

func (a *StatusAPI) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("status api listen %s: %w", a.addr, err)
	}
	server := &http.Server{Handler: a.Routes(), ReadHeaderTimeout: 5 * time.Second}
	a.mu.Lock()
	a.server = server
	a.mu.Unlock()

	slog.Info("Starting status API", "addr", l.Addr().String())
	if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *StatusAPI) Shutdown() error {
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()
	if server == nil {
		return nil
	}
	slog.Info("Shutting down status API")
	return server.Close()
}

func (a *StatusAPI) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   proto.StatusOK,
		"sessions": a.srv.Sessions().Len(),
	})
}

func (a *StatusAPI) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := a.srv.Sessions().List()
	res := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		res = append(res, s.Info())
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *StatusAPI) HandleTransports(w http.ResponseWriter, r *http.Request) {
	transports := a.srv.Transports()
	res := make([]TransportMetadata, 0, len(transports))
	for _, t := range transports {
		res = append(res, t.Meta())
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *StatusAPI) HandleFunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.srv.Registry().Specs())
}

func (a *StatusAPI) HandleRobotState(w http.ResponseWriter, r *http.Request) {
	resp := a.srv.Registry().Dispatch(r.Context(), proto.FuncGetRobotState, nil)
	status := http.StatusOK
	if !resp.OK() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// HandleCall runs one registry function. The body, if any, is the args
// object; the caller authenticates with "Authorization: Bearer <token>".
func (a *StatusAPI) HandleCall(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || !a.srv.Token(token) {
		writeJSON(w, http.StatusUnauthorized, proto.Error(msgInvalidToken))
		return
	}

	var args map[string]any
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, proto.Error(err.Error()))
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeJSON(w, http.StatusBadRequest, proto.Error(msgInvalidJSON))
			return
		}
	}

	name := chi.URLParam(r, "name")
	fields, err := a.srv.Registry().Invoke(r.Context(), name, args)
	switch {
	case errors.Is(err, proto.ErrDispatch):
		writeJSON(w, http.StatusNotFound, proto.Error(err.Error()))
	case errors.Is(err, proto.ErrArgument):
		writeJSON(w, http.StatusBadRequest, proto.Error(err.Error()))
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, proto.Error(err.Error()))
	default:
		writeJSON(w, http.StatusOK, proto.OK(fields))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
