package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/copyleftdev/swarmopt/internal/errors"
	"github.com/copyleftdev/swarmopt/internal/job"
	"github.com/copyleftdev/swarmopt/internal/optimization/objectives"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeNotFound       = -32001
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type idParams struct {
	OptimizationID string `json:"optimization_id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, nil, "", &rpcError{Code: codeParseError, Message: "Parse error"})
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, request.ID, request.Method, &rpcError{Code: codeInvalidRequest, Message: "Invalid Request"})
		return
	}

	var (
		result interface{}
		err    error
	)
	switch request.Method {
	case "optimization.start":
		result, err = s.rpcStart(request.Params)
	case "optimization.status":
		result, err = s.rpcStatus(request.Params)
	case "optimization.cancel":
		result, err = s.rpcCancel(request.Params)
	case "objectives.list":
		result = objectives.Names()
	default:
		s.respondWithError(w, request.ID, request.Method, &rpcError{Code: codeMethodNotFound, Message: "Method not found"})
		return
	}
	if err != nil {
		s.respondWithError(w, request.ID, request.Method, toRPCError(err))
		return
	}

	rpcRequests.WithLabelValues(request.Method, "0").Inc()
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: request.ID, Result: result})
}

func (s *Server) rpcStart(params json.RawMessage) (interface{}, error) {
	var req job.Request
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	run, err := s.Start(&req)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"optimization_id": run.ID,
		"status":          StatusPending,
	}, nil
}

func (s *Server) rpcStatus(params json.RawMessage) (interface{}, error) {
	id, err := optimizationID(params)
	if err != nil {
		return nil, err
	}
	run, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	return run.Snapshot(), nil
}

func (s *Server) rpcCancel(params json.RawMessage) (interface{}, error) {
	id, err := optimizationID(params)
	if err != nil {
		return nil, err
	}
	if err := s.Cancel(id); err != nil {
		return nil, err
	}
	return map[string]string{"status": "cancellation requested"}, nil
}

func optimizationID(params json.RawMessage) (string, error) {
	var p idParams
	if err := decodeParams(params, &p); err != nil {
		return "", err
	}
	if p.OptimizationID == "" {
		return "", apperrors.New(apperrors.KindInvalid, "optimization_id is required")
	}
	return p.OptimizationID, nil
}

// decodeParams accepts the parameters either as an object or as an array
// holding one object.
func decodeParams(params json.RawMessage, dst interface{}) error {
	raw := bytes.TrimSpace(params)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return apperrors.New(apperrors.KindInvalid, "missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return apperrors.Wrap(err, apperrors.KindInvalid, "invalid parameter format")
		}
		if len(list) != 1 {
			return apperrors.Errorf(apperrors.KindInvalid, "expected one parameter object, got %d", len(list))
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.Wrap(err, apperrors.KindInvalid, "invalid parameter format, expected object")
	}
	return nil
}

func toRPCError(err error) *rpcError {
	kind := apperrors.KindOf(err)
	data := map[string]string{"kind": kind.String()}
	switch kind {
	case apperrors.KindInvalid:
		return &rpcError{Code: codeInvalidParams, Message: err.Error(), Data: data}
	case apperrors.KindNotFound:
		return &rpcError{Code: codeNotFound, Message: err.Error(), Data: data}
	default:
		return &rpcError{Code: codeServerError, Message: err.Error(), Data: data}
	}
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, id json.RawMessage, method string, rerr *rpcError) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    rerr.Code,
		"message": rerr.Message,
		"method":  method,
	})
	if method == "" || rerr.Code == codeMethodNotFound {
		method = "unknown"
	}
	rpcRequests.WithLabelValues(method, strconv.Itoa(rerr.Code)).Inc()

	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Error: rerr})
}
