package flows

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const maxBodyBytes = 1 << 20

// ReadBody reads a JSON request body. An empty body is allowed; anything
// else must be valid JSON.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading request body: %v", ErrValidation, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid JSON body", ErrValidation)
	}
	return body, nil
}

// OptionalID extracts an integer id field that may arrive as a JSON number
// or a numeric string. null, a missing field and "" all yield nil.
func OptionalID(body []byte, field string) (*int64, error) {
	res := gjson.GetBytes(body, field)
	switch res.Type {
	case gjson.Null:
		return nil, nil
	case gjson.Number:
		if res.Num != math.Trunc(res.Num) {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrValidation, field)
		}
		id := res.Int()
		return &id, nil
	case gjson.String:
		s := strings.TrimSpace(res.Str)
		if s == "" {
			return nil, nil
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer", ErrValidation, field)
		}
		return &id, nil
	default:
		return nil, fmt.Errorf("%w: %s must be an integer", ErrValidation, field)
	}
}

// PathID parses an integer URL parameter.
func PathID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrValidation, name)
	}
	return id, nil
}

// StatusFor maps an error class to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorMessage returns the client-facing message for err. Storage errors
// are reported generically.
func ErrorMessage(err error) string {
	if StatusFor(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	msg := err.Error()
	for _, class := range []error{ErrValidation, ErrForbidden, ErrNotFound, ErrConflict} {
		if rest, ok := strings.CutPrefix(msg, class.Error()+": "); ok {
			return rest
		}
	}
	return msg
}
