// Package testkit drives REST API tests from JSON scenario files.
//
// A scenario describes one request, the status it must produce and,
// optionally, the exact JSON body expected back:
//
//	testdata/scenarios/
//	  login_wrong_password.json      ← scenario
//	  login_wrong_password_res.json  ← expected response body
//
//	func TestScenarios(t *testing.T) {
//	    testkit.RunDir(t, handler, "testdata/scenarios", testkit.Options{Token: signIn})
//	}
//
// Outgoing calls made through pkg/http during a scenario are answered by
// the scenario's mock steps instead of the network.
package testkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Scenario is one request/response case.
type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	RequestMethod   string            `json:"requestMethod"` // default GET
	RequestURL      string            `json:"requestUrl"`
	RequestBody     json.RawMessage   `json:"requestBody"`     // inline body
	RequestFileName string            `json:"requestFileName"` // or a file next to the scenario
	Headers         map[string]string `json:"headers"`

	// As names the account to sign in as. The runner asks Options.Token
	// for a bearer token; empty means anonymous.
	As string `json:"as"`

	ExpectedCode     int    `json:"expectedCode"`
	ResponseFileName string `json:"responseFileName"`

	// IsMockRequired fails outgoing calls that match no mock step.
	IsMockRequired bool       `json:"isMockRequired"`
	MockSteps      []MockStep `json:"mockSteps"`

	dir string
}

// MockStep answers outgoing requests whose URL starts with MatchURL (any
// URL when empty).
type MockStep struct {
	MatchURL   string `json:"matchUrl"`
	StatusCode int    `json:"statusCode"` // default 200
	Body       string `json:"body"`
}

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}
	s.dir = filepath.Dir(abs)
	return &s, nil
}

func (s *Scenario) validate() error {
	switch {
	case s.Name == "":
		return errors.New("name is required")
	case s.RequestURL == "":
		return errors.New("requestUrl is required")
	case s.ExpectedCode == 0:
		return errors.New("expectedCode is required")
	case len(s.RequestBody) > 0 && s.RequestFileName != "":
		return errors.New("requestBody and requestFileName are exclusive")
	}
	if s.RequestMethod == "" {
		s.RequestMethod = "GET"
	}
	s.RequestMethod = strings.ToUpper(s.RequestMethod)
	return nil
}

// body returns the request payload, if any.
func (s *Scenario) body() ([]byte, error) {
	if len(s.RequestBody) > 0 {
		return s.RequestBody, nil
	}
	if s.RequestFileName == "" {
		return nil, nil
	}
	return os.ReadFile(s.resolve(s.RequestFileName))
}

// expected returns the expected response body, or nil when the scenario
// only checks the status code.
func (s *Scenario) expected() ([]byte, error) {
	if s.ResponseFileName == "" {
		return nil, nil
	}
	return os.ReadFile(s.resolve(s.ResponseFileName))
}

func (s *Scenario) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

// LoadDir loads every scenario in dir. Files ending in _req.json or
// _res.json are bodies, not scenarios.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	var (
		out  []*Scenario
		errs []error
	)
	for _, p := range paths {
		if strings.HasSuffix(p, "_req.json") || strings.HasSuffix(p, "_res.json") {
			continue
		}
		s, err := LoadScenario(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 && len(errs) == 0 {
		return nil, fmt.Errorf("testkit: no scenario files found in %q", dir)
	}
	return out, errors.Join(errs...)
}
