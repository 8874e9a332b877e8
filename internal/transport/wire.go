// Package transport carries operation requests to a remote buffer service
// over a local HTTP endpoint.
package transport

import "encoding/base64"

// OperationPath is the endpoint accepting operation requests.
const OperationPath = "/v1/ops"

// envelopeOverhead covers the JSON keys, the operation and length fields
// and the quotes around the encoded payload.
const envelopeOverhead = 256

// EnvelopeSize returns the largest request body needed to carry a write
// of payload bytes.
func EnvelopeSize(payload int) int64 {
	return int64(base64.StdEncoding.EncodedLen(payload)) + envelopeOverhead
}

// OperationRequest is the JSON body of a call. Data holds the write payload.
type OperationRequest struct {
	Operation int    `json:"operation"`
	Length    int    `json:"length"`
	Data      []byte `json:"data,omitempty"`
}

// OperationResponse is the JSON reply. Result follows the signed result
// convention; Data holds read bytes or the encoded stats record.
type OperationResponse struct {
	Result int64  `json:"result"`
	Data   []byte `json:"data,omitempty"`
}
