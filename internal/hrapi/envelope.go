package hrapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Amund211/paydesk/internal/domain"
)

// The backend wraps payloads in several ways depending on the endpoint:
//
//	[...]
//	{"status": "success", "data": ..., "message": "..."}
//	{"count": 3, "results": [...]}
//	{"data": {"results": [...]}}
//	{...} (the payload itself)
type envelope struct {
	Status  json.RawMessage `json:"status"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Results json.RawMessage `json:"results"`
}

// errNoPayload is returned for acknowledgements like {"status": "success", "message": "saved"}
// and for envelopes with a null data field
var errNoPayload = errors.New("response has no payload")

var acknowledgementKeys = map[string]bool{
	"status":  true,
	"success": true,
	"message": true,
	"error":   true,
}

// isEnvelope reports whether fields are a wrapper around the payload rather
// than the payload itself. A status field alone does not make an envelope,
// payloads like payroll runs carry their own status.
func isEnvelope(fields map[string]json.RawMessage) bool {
	_, hasStatus := fields["status"]
	_, hasSuccess := fields["success"]
	if !hasStatus && !hasSuccess {
		return false
	}
	for _, key := range []string{"data", "results", "message", "error"} {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	for key := range fields {
		if !acknowledgementKeys[key] {
			return false
		}
	}
	return true
}

type resultsWrapper struct {
	Results json.RawMessage `json:"results"`
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func (e envelope) rejected() bool {
	if e.Success != nil && !*e.Success {
		return true
	}
	if !present(e.Status) {
		return false
	}

	var statusBool bool
	if err := json.Unmarshal(e.Status, &statusBool); err == nil {
		return !statusBool
	}
	var statusString string
	if err := json.Unmarshal(e.Status, &statusString); err == nil {
		return strings.EqualFold(statusString, "error")
	}
	return false
}

func (e envelope) reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return "no message"
}

// unwrap returns the payload inside body
func unwrap(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if trimmed[0] != '{' {
		return trimmed, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope: %w", err)
	}
	wrapped := isEnvelope(fields)

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope: %w", err)
	}

	if wrapped && env.rejected() {
		return nil, fmt.Errorf("%w: %s", domain.ErrBackendRejected, env.reason())
	}

	if present(env.Results) {
		return env.Results, nil
	}
	if present(env.Data) {
		if bytes.HasPrefix(bytes.TrimSpace(env.Data), []byte("{")) {
			var wrapper resultsWrapper
			if err := json.Unmarshal(env.Data, &wrapper); err == nil && present(wrapper.Results) {
				return wrapper.Results, nil
			}
		}
		return env.Data, nil
	}
	if wrapped {
		return nil, errNoPayload
	}
	return trimmed, nil
}

func decode[T any](body []byte) (T, error) {
	var result T

	payload, err := unwrap(body)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(payload, &result); err != nil {
		return result, fmt.Errorf("failed to parse response payload: %w", err)
	}
	return result, nil
}

// decodeList is decode for list endpoints, a null payload is an empty list
func decodeList[T any](body []byte) ([]T, error) {
	result, err := decode[[]T](body)
	if errors.Is(err, errNoPayload) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return []T{}, nil
	}
	return result, nil
}
