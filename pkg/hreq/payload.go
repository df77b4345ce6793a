package hreq

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/go-analyze/bulk"

	"github.com/brendan.keane/hreq/internal/errors"
)

// encodePayload serializes a send payload. Structured values are form
// encoded with sorted keys; strings and bytes pass through unchanged.
func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(p), nil
	case []byte:
		return p, nil
	case url.Values:
		return []byte(p.Encode()), nil
	case map[string][]string:
		return []byte(url.Values(p).Encode()), nil
	case map[string]string:
		keys := bulk.MapKeysSlice(p)
		slices.Sort(keys)
		var sb strings.Builder
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(p[k]))
		}
		return []byte(sb.String()), nil
	default:
		return nil, errors.New(errors.ErrorTypeValidation, "unsupported payload type").
			WithContext("field", "payload").
			WithContext("type", fmt.Sprintf("%T", payload))
	}
}

// newRequest freezes cfg and places the payload: in the query string for GET,
// in the body otherwise.
func newRequest(cfg *Config, payload any, requestID string) (*Request, error) {
	data, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	snapshot := cfg.Clone()
	target := snapshot.TargetURL()
	req := &Request{Config: snapshot, RequestID: requestID, target: target}

	if snapshot.Method == MethodGet {
		if len(data) > 0 {
			if target.RawQuery != "" {
				target.RawQuery += "&" + string(data)
			} else {
				target.RawQuery = string(data)
			}
		}
	} else {
		req.Body = data
	}
	return req, nil
}
