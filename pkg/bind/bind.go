// Package bind decodes and validates an HTTP request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/tommyfx/storefront/config"
	"github.com/tommyfx/storefront/pkg/validate"
)

const defaultMaxBody = 1 << 20 // 1 MB

// ErrEmptyBody is returned when the request carries no JSON document.
var ErrEmptyBody = errors.New("bind: request body is empty")

func maxBodyBytes() int64 {
	n, err := strconv.ParseInt(config.Get("MAX_BODY_BYTES", ""), 10, 64)
	if err != nil || n <= 0 {
		return defaultMaxBody
	}
	return n
}

// JSON decodes r.Body into dest and runs its validate tags. The body is
// capped at MAX_BODY_BYTES.
//
// Returns (errs, nil) when validation fails and (nil, err) when the body
// is missing, malformed or too large.
func JSON(w http.ResponseWriter, r *http.Request, dest any) (errs map[string]string, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes())

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err = dec.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil, ErrEmptyBody
		case errors.As(err, &maxErr):
			return nil, fmt.Errorf("bind: request body too large (max %d bytes)", maxErr.Limit)
		default:
			return nil, fmt.Errorf("bind: invalid JSON: %w", err)
		}
	}

	if errs = validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}
