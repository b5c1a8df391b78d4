// Package controllers adapts the storefront services to HTTP, WebSocket
// and SSE. REST handlers build a request-scoped view, load it once and
// reply with its snapshot; socket and stream handlers keep a view active
// for the life of the connection.
package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tommyfx/storefront/app/services"
	"github.com/tommyfx/storefront/pkg/livequery"
	"github.com/tommyfx/storefront/pkg/notification"
	"github.com/tommyfx/storefront/pkg/response"
)

// mutationResult is the body of every mutation reply.
type mutationResult struct {
	Outcome livequery.Outcome     `json:"outcome"`
	Record  any                   `json:"record,omitempty"`
	View    any                   `json:"view,omitempty"`
	Notices []notification.Notice `json:"notices,omitempty"`
}

// writeMutation maps a mutation error onto a status code. A remote failure
// is reported as 502 with the view as it now stands, since the local
// change may have been kept.
func writeMutation(w http.ResponseWriter, res mutationResult, err error, created bool) {
	var mErr *livequery.MutationError
	var vErr *livequery.ValidationError

	switch {
	case err == nil && created:
		response.Created(w, res)
	case err == nil:
		response.Success(w, res)
	case errors.As(err, &vErr):
		response.ValidationError(w, vErr.Fields)
	case errors.Is(err, services.ErrUnknownRecord):
		response.NotFound(w)
	case errors.Is(err, livequery.ErrMutationInFlight):
		response.Conflict(w, "This item is already being updated.")
	case errors.As(err, &mErr):
		msg := "The change may not be persisted."
		if mErr.RolledBack {
			msg = "The change could not be saved and was undone."
		}
		response.WithMessage(w, http.StatusBadGateway, msg, res)
	default:
		response.Error(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

// loadFailed replies when a request-scoped view could not fetch.
func loadFailed(w http.ResponseWriter) {
	response.Error(w, http.StatusServiceUnavailable, "Could not load data. Please try again.")
}

// intQuery reads a positive integer query parameter, else def.
func intQuery(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// offer puts v into a one-slot channel, replacing whatever was waiting.
// Observers are called one at a time, so a single producer races nobody.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
