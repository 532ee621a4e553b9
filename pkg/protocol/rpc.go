package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Request invokes one robot operation by wire name. Params is a JSON object
// of named arguments, absent for operations that take none.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response carries either a result or a fault, never both.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Fault          `json:"error,omitempty"`
}

// Fault is an application-level error on the wire.
type Fault struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ErrEmptyMethod is returned for a request without a method name.
var ErrEmptyMethod = errors.New("protocol: request has no method")

// NewRequest creates a request with a fresh ID.
func NewRequest(method string, params interface{}) (*Request, error) {
	if method == "" {
		return nil, ErrEmptyMethod
	}
	req := &Request{
		ID:     uuid.NewString(),
		Method: method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
		}
		req.Params = raw
	}
	return req, nil
}

// ParseRequest parses and validates a JSON request.
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	if req.Method == "" {
		return nil, ErrEmptyMethod
	}
	return &req, nil
}

// ParseParams unmarshals the request arguments into v. Missing params leave v
// untouched.
func (r *Request) ParseParams(v interface{}) error {
	if len(r.Params) == 0 || string(r.Params) == "null" {
		return nil
	}
	return json.Unmarshal(r.Params, v)
}

// NewResult creates a successful response for id.
func NewResult(id string, result interface{}) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{ID: id, Result: raw}, nil
}

// NewFault creates a failed response for id.
func NewFault(id, kind, message string) *Response {
	return &Response{ID: id, Error: &Fault{Kind: kind, Message: message}}
}

// ParseResponse parses a JSON response.
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// ParseResult unmarshals the result into v. A nil v discards it.
func (r *Response) ParseResult(v interface{}) error {
	if r.Error != nil {
		return r.Error
	}
	if v == nil || len(r.Result) == 0 {
		return nil
	}
	return json.Unmarshal(r.Result, v)
}

// =============================================================================
// Operation Parameters and Results
// =============================================================================

// SetLightsParams are the arguments of set_lights
type SetLightsParams struct {
	LeftColor  string `json:"left_color"`
	RightColor string `json:"right_color"`
}

// SetMotorsParams are the arguments of set_motors
type SetMotorsParams struct {
	LeftSpeed  int `json:"left_speed"`
	RightSpeed int `json:"right_speed"`
}

// SetHeadParams are the arguments of set_head
type SetHeadParams struct {
	Position int `json:"position"`
}

// SpeakParams are the arguments of speak
type SpeakParams struct {
	Text string `json:"text"`
}

// StatusResult acknowledges an actuation
type StatusResult struct {
	Status string `json:"status"`
}

// StatusSuccess is the acknowledgement of every successful actuation.
var StatusSuccess = StatusResult{Status: "success"}
