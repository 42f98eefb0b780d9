// Package providertest intercepts provider user-info traffic in tests.
//
// A Harness is an http.RoundTripper. Install it through Client() in the
// providers.ClientConfig handed to the adapters; adapters are not aware of it.
// Routes are bound to a URL pattern (usually EndpointPattern of the real
// endpoint) and answer according to the access_token query parameter:
//
//	200 + the fixture body when the token is a known key
//	401 + {"errors": "Invalid Token"} otherwise
//
// Requests matching no route fail at the transport level and are recorded, so a
// test can assert that no network call happened.
package providertest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
)

// Users is the fixture set from the login scenarios, keyed by access token.
var Users = map[string]map[string]any{
	"00001": {"id": "00001", "name": "Foo Bar", "email": "foo@bar.com"},
	"00002": {"id": "00002", "name": "Pooh Bear", "email": "winnie@100acre.net"},
}

// queryStringRE matches an optional query string of any content.
const queryStringRE = `(\?[^#]*)?$`

// EndpointPattern matches endpoint followed by an arbitrary query string.
func EndpointPattern(endpoint string) *regexp.Regexp {
	return regexp.MustCompile("^" + regexp.QuoteMeta(endpoint) + queryStringRE)
}

// Responder builds the response for one intercepted request.
type Responder func(req *http.Request) (*http.Response, error)

// Call records one intercepted request. Token is the access_token parameter.
type Call struct {
	Method  string
	URL     string
	Token   string
	Matched bool
}

type route struct {
	pattern *regexp.Regexp
	respond Responder
}

// Harness is safe for concurrent use.
type Harness struct {
	mu     sync.Mutex
	routes []route
	calls  []Call
}

// New returns an empty harness; every request fails until a route is added.
func New() *Harness {
	return &Harness{}
}

// Client returns an *http.Client whose transport is the harness.
func (h *Harness) Client() *http.Client {
	return &http.Client{Transport: h}
}

// Handle binds a responder to pattern. Later routes take precedence.
func (h *Harness) Handle(pattern *regexp.Regexp, respond Responder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append([]route{{pattern: pattern, respond: respond}}, h.routes...)
}

// MockUserInfo installs the token-keyed responder for endpoint.
func (h *Harness) MockUserInfo(endpoint string, users map[string]map[string]any) {
	h.Handle(EndpointPattern(endpoint), UserInfoResponder(users))
}

// UserInfoResponder answers 200 with users[token] or 401 for unknown tokens.
func UserInfoResponder(users map[string]map[string]any) Responder {
	return func(req *http.Request) (*http.Response, error) {
		token := req.URL.Query().Get("access_token")
		if body, ok := users[token]; ok {
			return JSON(req, http.StatusOK, body), nil
		}
		return JSON(req, http.StatusUnauthorized, map[string]any{"errors": "Invalid Token"}), nil
	}
}

// Status answers every request with status and body.
func Status(status int, body any) Responder {
	return func(req *http.Request) (*http.Response, error) {
		return JSON(req, status, body), nil
	}
}

// Raw answers with a non-JSON body.
func Raw(status int, body string) Responder {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": {"text/html"}},
			Body:       io.NopCloser(bytes.NewBufferString(body)),
			Request:    req,
		}, nil
	}
}

// Fail returns err from the transport, like a refused connection.
func Fail(err error) Responder {
	return func(*http.Request) (*http.Response, error) { return nil, err }
}

// Hang blocks until the request context is done, simulating a provider that
// never answers.
func Hang() Responder {
	return func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}
}

// JSON builds a JSON response.
func JSON(req *http.Request, status int, body any) *http.Response {
	b, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
		Request:    req,
	}
}

// ErrNoRoute is returned for requests no route matches.
var ErrNoRoute = errors.New("providertest: no route")

// RoundTrip implements http.RoundTripper.
func (h *Harness) RoundTrip(req *http.Request) (*http.Response, error) {
	full := req.URL.String()
	call := Call{Method: req.Method, URL: full, Token: req.URL.Query().Get("access_token")}
	// Routes match scheme, host and path; the query is read by the responder.
	base := req.URL.Scheme + "://" + req.URL.Host + req.URL.EscapedPath()

	h.mu.Lock()
	var respond Responder
	if req.Method == http.MethodGet {
		for _, r := range h.routes {
			if r.pattern.MatchString(base) {
				respond = r.respond
				break
			}
		}
	}
	call.Matched = respond != nil
	h.calls = append(h.calls, call)
	h.mu.Unlock()

	if respond == nil {
		return nil, fmt.Errorf("%w for %s %s://%s%s", ErrNoRoute, req.Method, req.URL.Scheme, req.URL.Host, req.URL.Path)
	}
	return respond(req)
}

// Calls returns a copy of every request seen so far.
func (h *Harness) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// CallCount is len(Calls()).
func (h *Harness) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// Reset forgets recorded calls but keeps routes.
func (h *Harness) Reset() {
	h.mu.Lock()
	h.calls = nil
	h.mu.Unlock()
}
