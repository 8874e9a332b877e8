package server

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jittakal/rwbuffer/internal/buffer"
	"github.com/jittakal/rwbuffer/internal/errors"
	"github.com/jittakal/rwbuffer/internal/transport"
	"github.com/jittakal/rwbuffer/pkg/op"
)

// Invoker runs a request against a buffer of the reported capacity and
// returns the signed result.
type Invoker interface {
	Invoke(ctx context.Context, req *op.Request) int64
	Capacity() int
}

// OperationHandler serves operation requests. Malformed envelopes are
// answered with the boundary fault code; every other outcome comes from
// the invoker. maxBytes bounds the request body, zero means 1 MiB. The
// bound never drops below what a full-capacity write needs.
func OperationHandler(invoker Invoker, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	capacity := invoker.Capacity()
	maxBytes = max(maxBytes, transport.EnvelopeSize(capacity))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeOperation(w, http.StatusMethodNotAllowed, transport.OperationResponse{Result: errors.CodeInvalidArgument}, logger)
			return
		}

		var body transport.OperationRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes)).Decode(&body); err != nil {
			logger.Warn("malformed operation request", zap.Error(err))
			writeOperation(w, http.StatusBadRequest, transport.OperationResponse{Result: errors.CodeBoundaryFault}, logger)
			return
		}

		req := toRequest(body, capacity)
		result := invoker.Invoke(r.Context(), req)

		reply := transport.OperationResponse{Result: result}
		if result >= 0 {
			switch req.Op {
			case op.Read:
				reply.Data = req.Buffer[:result]
			case op.Stats:
				reply.Data = req.Buffer[:op.StatsRecordSize]
			}
		}

		writeOperation(w, http.StatusOK, reply, logger)
	}
}

// toRequest rebuilds the in-process descriptor from the wire body. Read and
// stats destinations are allocated here. A read allocation is bounded by
// the buffer capacity, which is all a read can return; lengths out of range
// are left for validation.
func toRequest(body transport.OperationRequest, capacity int) *op.Request {
	req := &op.Request{Op: op.Code(body.Operation), Length: body.Length}

	switch req.Op {
	case op.Read:
		if body.Length > 0 {
			req.Length = buffer.Clamp(body.Length, capacity)
			req.Buffer = make([]byte, req.Length)
		}
	case op.Write:
		req.Buffer = body.Data
	case op.Stats:
		if body.Length >= op.StatsRecordSize {
			req.Buffer = make([]byte, op.StatsRecordSize)
		}
	}

	return req
}

func writeOperation(w http.ResponseWriter, statusCode int, reply transport.OperationResponse, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(reply); err != nil {
		logger.Error("failed to encode operation response", zap.Error(err))
	}
}
