package requestcoord

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// cacheKey is the target followed by the JSON encoding of params. encoding/json
// sorts map keys, so equal params give equal keys.
func cacheKey(target string, params url.Values) (string, error) {
	if len(params) == 0 {
		return target, nil
	}

	encoded, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode params: %w", ErrInvalidRequest, err)
	}
	return target + string(encoded), nil
}

type mutationKeyData struct {
	Method string `json:"method"`
	Data   any    `json:"data"`
}

func mutationKey(method string, target string, params url.Values, body any) (string, error) {
	key, err := cacheKey(target, params)
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(mutationKeyData{Method: method, Data: body})
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode body: %w", ErrInvalidRequest, err)
	}
	return key + string(encoded), nil
}
