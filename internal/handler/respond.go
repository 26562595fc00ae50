package handler

import (
	"io"
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/emberroast/brewcart/internal/domain/cart"
	"github.com/emberroast/brewcart/internal/domain/checkout"
	"github.com/emberroast/brewcart/internal/domain/product"
)

const maxBodyBytes = 1 << 20

// readBody reads a size-capped request body for decoding.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError emits the structured error payload {code, message}.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// writeFieldErrors emits the validation payload {code, message, fields}. Field
// failures are form state, not faults, so they travel as 422 with a per-field
// message map the UI can pin to inputs.
func writeFieldErrors(w http.ResponseWriter, fe checkout.FieldErrors) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(http.StatusUnprocessableEntity)
	e.FieldStart("message")
	e.Str("validation failed")
	e.FieldStart("fields")
	e.ObjStart()
	for _, field := range sortedKeys(fe) {
		e.FieldStart(field)
		e.Str(fe[field])
	}
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusUnprocessableEntity, &e)
}

// respondError maps domain errors to HTTP status codes at the boundary.
// Anything unrecognized is a 500 with the detail kept out of the response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var malformed *cart.MalformedSelectionError
	switch {
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "quantity must be greater than 0")
	case errors.As(err, &malformed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusConflict, "cart is empty")
	case errors.Is(err, checkout.ErrProcessing):
		writeError(w, http.StatusConflict, "payment already processing")
	case errors.Is(err, checkout.ErrCompleted):
		writeError(w, http.StatusConflict, "checkout already completed")
	case errors.Is(err, checkout.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "action not allowed in current checkout stage")
	case errors.Is(err, errMalformedBody):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

var errMalformedBody = errors.New("malformed request body")

// sortedKeys keeps JSON field maps in a stable order for tests and logs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
