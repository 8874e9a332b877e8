package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jittakal/rwbuffer/internal/client"
	"github.com/jittakal/rwbuffer/internal/dispatch"
	"github.com/jittakal/rwbuffer/internal/errors"
	"github.com/jittakal/rwbuffer/pkg/op"
)

// Ensure implementation satisfies interface at compile time.
var _ client.Caller = (*HTTPCaller)(nil)

// HTTPCaller sends operation requests to a remote service.
// Any failure to move the request or reply is reported as a boundary fault.
type HTTPCaller struct {
	endpoint string
	client   *http.Client
}

// NewHTTPCaller creates a caller for the service at baseURL.
func NewHTTPCaller(baseURL string, timeout time.Duration) *HTTPCaller {
	return &HTTPCaller{
		endpoint: strings.TrimRight(baseURL, "/") + OperationPath,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        256,
				MaxIdleConnsPerHost: 256,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Call performs req remotely and copies any returned data into req.Buffer.
func (c *HTTPCaller) Call(ctx context.Context, req *op.Request) (int, error) {
	// Reject malformed descriptors before they cross the boundary.
	if err := dispatch.Validate(req); err != nil {
		return 0, err
	}
	name := req.Op.String()

	body := OperationRequest{Operation: int(req.Op), Length: req.Length}
	if req.Op == op.Write {
		body.Data = req.Buffer[:req.Length]
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, errors.BoundaryFault(name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, errors.BoundaryFault(name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, errors.BoundaryFault(name, err)
	}
	defer resp.Body.Close()

	var reply OperationResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return 0, errors.BoundaryFault(name, fmt.Errorf("decode reply (status %d): %w", resp.StatusCode, err))
	}

	if reply.Result < 0 {
		return 0, remoteError(name, reply.Result)
	}

	switch req.Op {
	case op.Read:
		if int64(len(reply.Data)) != reply.Result || len(reply.Data) > len(req.Buffer) {
			return 0, errors.BoundaryFault(name, fmt.Errorf("reply carries %d bytes for result %d", len(reply.Data), reply.Result))
		}
		copy(req.Buffer, reply.Data)
	case op.Stats:
		if len(reply.Data) < op.StatsRecordSize || len(req.Buffer) < op.StatsRecordSize {
			return 0, errors.BoundaryFault(name, fmt.Errorf("short stats record of %d bytes", len(reply.Data)))
		}
		copy(req.Buffer, reply.Data[:op.StatsRecordSize])
	}

	return int(reply.Result), nil
}

func remoteError(name string, code int64) error {
	err := errors.FromCode(code)
	if err == context.Canceled {
		return err
	}
	return &errors.OperationError{Op: name, Reason: "rejected by service", Err: err}
}
