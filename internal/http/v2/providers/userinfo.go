package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds the whole Verify call.
	DefaultTimeout = 10 * time.Second

	maxUserInfoBytes = 1 << 20
)

// Observer receives the outcome of every user-info call. Used for metrics.
type Observer func(provider ID, outcome string, elapsed time.Duration)

// Outcome labels passed to Observer.
const (
	OutcomeOK          = "ok"
	OutcomeInvalid     = "invalid_token"
	OutcomeUnavailable = "unavailable"
)

// ClientConfig configures a UserInfoClient.
type ClientConfig struct {
	HTTPClient *http.Client  // default: a plain *http.Client
	Timeout    time.Duration // default: DefaultTimeout
	Observer   Observer      // optional
}

// UserInfoClient performs the single GET an adapter makes per verification. It
// does not retry: retrying an invalid token is useless and transient failures
// are the caller's policy.
type UserInfoClient struct {
	http     *http.Client
	timeout  time.Duration
	observer Observer
}

// NewUserInfoClient applies defaults to cfg.
func NewUserInfoClient(cfg ClientConfig) *UserInfoClient {
	c := &UserInfoClient{http: cfg.HTTPClient, timeout: cfg.Timeout, observer: cfg.Observer}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// Fetch GETs endpoint with query merged into its query string and decodes a 2xx
// JSON body into out.
//
// Classification:
//   - 2xx with valid JSON: nil
//   - 4xx other than 429: ErrTokenInvalid
//   - 429, 5xx, other statuses, transport errors, deadline, bad JSON: ErrUnavailable
//
// Returned errors never contain the request URL, which carries the token.
func (c *UserInfoClient) Fetch(ctx context.Context, provider ID, endpoint string, query url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer(provider, outcomeOf(err), time.Since(start))
		}
	}()

	u, err := url.Parse(endpoint)
	if err != nil {
		return wrap(ErrUnavailable, provider, "invalid endpoint configuration")
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return wrap(ErrUnavailable, provider, "build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return wrap(ErrUnavailable, provider, transportMessage(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return wrap(ErrUnavailable, provider, "read body: "+transportMessage(err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(body, out); err != nil {
			return wrap(ErrUnavailable, provider, "malformed user info: "+err.Error())
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return wrap(ErrUnavailable, provider, "rate limited by provider")
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return wrap(ErrTokenInvalid, provider, "status "+strconv.Itoa(resp.StatusCode)+errorSuffix(body))
	default:
		return wrap(ErrUnavailable, provider, "status "+strconv.Itoa(resp.StatusCode))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrTokenInvalid):
		return OutcomeInvalid
	default:
		return OutcomeUnavailable
	}
}

// transportMessage strips the *url.Error envelope, whose text includes the URL.
func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if uerr.Timeout() {
			return "timeout"
		}
		return uerr.Err.Error()
	}
	return err.Error()
}

// errorSuffix extracts the provider's error description from the shapes used by
// Graph API ({"error":{"message":...}}), Google ({"error_description":...}) and
// plain {"error": "..."} / {"errors": "..."} bodies.
func errorSuffix(body []byte) string {
	var shape struct {
		Error       json.RawMessage `json:"error"`
		Errors      json.RawMessage `json:"errors"`
		Description string          `json:"error_description"`
	}
	if json.Unmarshal(body, &shape) != nil {
		return ""
	}
	if shape.Description != "" {
		return ": " + truncate(shape.Description)
	}
	for _, raw := range []json.RawMessage{shape.Error, shape.Errors} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return ": " + truncate(s)
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &obj) == nil && obj.Message != "" {
			return ": " + truncate(obj.Message)
		}
	}
	return ""
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120]
	}
	return s
}

func wrap(kind error, provider ID, msg string) error {
	return fmt.Errorf("%w: %s: %s", kind, provider, msg)
}

// FlexString decodes JSON strings and numbers. Graph API ids are strings but some
// proxies and fixtures send them as numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// FlexBool decodes true/false and "true"/"false". Set records whether the field
// was present.
type FlexBool struct {
	Value bool
	Set   bool
}

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("flexbool: %q", s)
	}
	f.Value, f.Set = v, true
	return nil
}
