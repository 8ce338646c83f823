package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linkoftrust/core"
	"linkoftrust/core/state"
	"linkoftrust/native/trust"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001

	codeInsufficientDeposit = -32010
	codeBlocked             = -32011
	codeWouldBreachSolvency = -32012
	codeInsufficientFunds   = -32013
	codeInvalidLevel        = -32014
)

type Server struct {
	node   *core.Node
	logger *slog.Logger
}

func NewServer(node *core.Node, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{node: node, logger: logger}
}

// Router exposes the JSON-RPC endpoint alongside health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeNodeError maps engine and bank failures onto stable RPC error codes.
func writeNodeError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, trust.ErrInsufficientDeposit):
		writeError(w, http.StatusBadRequest, id, codeInsufficientDeposit, "insufficient storage deposit", err.Error())
	case errors.Is(err, trust.ErrBlocked):
		writeError(w, http.StatusForbidden, id, codeBlocked, "caller is blocked by target", nil)
	case errors.Is(err, trust.ErrWouldBreachSolvency):
		writeError(w, http.StatusBadRequest, id, codeWouldBreachSolvency, "withdrawal would breach solvency", err.Error())
	case errors.Is(err, trust.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, "caller not authorized", nil)
	case errors.Is(err, trust.ErrInvalidLevel):
		writeError(w, http.StatusBadRequest, id, codeInvalidLevel, "trust level out of range", err.Error())
	case errors.Is(err, trust.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid token amount", err.Error())
	case errors.Is(err, state.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, id, codeInsufficientFunds, "account balance too low", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "operation failed", err.Error())
	}
}

// handle is the main request handler that routes to method handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "trust_modifyProfile":
		s.handleModifyProfile(w, req)
	case "trust_set":
		s.handleTrust(w, req)
	case "trust_remove":
		s.handleUntrust(w, req)
	case "trust_block":
		s.handleBlockUser(w, req)
	case "trust_unblock":
		s.handleUnblockUser(w, req)
	case "trust_deleteUser":
		s.handleDeleteUser(w, req)
	case "trust_extractProfit":
		s.handleExtractProfit(w, req)
	case "trust_getTotalUsersDeposit":
		s.handleGetTotalUsersDeposit(w, req)
	case "trust_getUserData":
		s.handleGetUserData(w, req)
	case "trust_getUserDeposit":
		s.handleGetUserDeposit(w, req)
	case "trust_listUsers":
		s.handleListUsers(w, req)
	case "bank_getBalance":
		s.handleGetBalance(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}
