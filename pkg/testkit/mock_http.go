package testkit

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockTransport is an http.RoundTripper that answers from mock steps.
// Install it on pkg/http's client:
//
//	mt := testkit.NewMockTransport(steps, true)
//	storehttp.DefaultClient.Transport = mt
//	defer storehttp.ResetTransport()
type MockTransport struct {
	mu      sync.Mutex
	steps   []MockStep
	calls   []int
	require bool
	seen    []string
}

// NewMockTransport answers with the first step whose MatchURL prefixes the
// request URL. Unmatched calls fail when require is set and get a 404
// otherwise.
func NewMockTransport(steps []MockStep, require bool) *MockTransport {
	return &MockTransport{steps: steps, calls: make([]int, len(steps)), require: require}
}

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	url := req.URL.String()
	mt.seen = append(mt.seen, url)

	for i, step := range mt.steps {
		if step.MatchURL != "" && !strings.HasPrefix(url, step.MatchURL) {
			continue
		}
		mt.calls[i]++
		return respond(req, step.StatusCode, step.Body), nil
	}

	if mt.require {
		return nil, fmt.Errorf("testkit: unexpected outgoing call to %s", url)
	}
	return respond(req, http.StatusNotFound, `{"error":"no mock configured"}`), nil
}

// Seen lists every URL requested so far.
func (mt *MockTransport) Seen() []string {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]string(nil), mt.seen...)
}

// Uncalled reports steps that never matched a request.
func (mt *MockTransport) Uncalled() []error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var errs []error
	for i, n := range mt.calls {
		if n == 0 {
			errs = append(errs, fmt.Errorf("testkit: mock step %d (matchUrl=%q) was never called", i, mt.steps[i].MatchURL))
		}
	}
	return errs
}

func respond(req *http.Request, code int, body string) *http.Response {
	if code == 0 {
		code = http.StatusOK
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}
