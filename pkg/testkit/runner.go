package testkit

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storehttp "github.com/tommyfx/storefront/pkg/http"
)

// Options tune a run.
type Options struct {
	// Token returns a bearer token for the account a scenario names in
	// "as".
	Token func(t *testing.T, account string) string
}

// Run executes one scenario file against handler as a subtest.
func Run(t *testing.T, handler http.Handler, path string, opts Options) {
	t.Helper()
	s, err := LoadScenario(path)
	require.NoError(t, err)
	t.Run(s.Name, func(t *testing.T) { runScenario(t, handler, s, opts) })
}

// RunDir runs every scenario in dir as a subtest.
func RunDir(t *testing.T, handler http.Handler, dir string, opts Options) {
	t.Helper()
	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) { runScenario(t, handler, s, opts) })
	}
}

func runScenario(t *testing.T, handler http.Handler, s *Scenario, opts Options) {
	t.Helper()

	payload, err := s.body()
	require.NoError(t, err, "request body")

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(s.RequestMethod, s.RequestURL, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}
	if s.As != "" {
		require.NotNil(t, opts.Token, "scenario %q signs in but Options.Token is nil", s.Name)
		req.Header.Set("Authorization", "Bearer "+opts.Token(t, s.As))
	}

	mt := NewMockTransport(s.MockSteps, s.IsMockRequired)
	storehttp.DefaultClient.Transport = mt
	defer storehttp.ResetTransport()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, s.ExpectedCode, rec.Code, "[%s] status code\nbody: %s", s.Name, rec.Body.String())

	expected, err := s.expected()
	require.NoError(t, err, "expected response file")
	if expected != nil {
		AssertJSONBody(t, s.Name, expected, rec.Body.Bytes())
	}
	for _, err := range mt.Uncalled() {
		assert.NoError(t, err, "[%s]", s.Name)
	}
}

// AssertJSONBody compares two JSON documents ignoring key order and
// whitespace.
func AssertJSONBody(t *testing.T, name string, expected, actual []byte) {
	t.Helper()

	var exp, act any
	require.NoError(t, json.Unmarshal(expected, &exp), "[%s] expected body is not JSON", name)
	if !assert.NoError(t, json.Unmarshal(actual, &act), "[%s] body is not JSON\nbody: %s", name, actual) {
		return
	}
	assert.Equal(t, exp, act, "[%s] response body", name)
}
