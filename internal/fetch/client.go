package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/shrimpsizemoose/attemptlog/internal/models"
)

type Reason string

const (
	ReasonTransport Reason = "transport"
	ReasonStatus    Reason = "status"
	ReasonDecode    Reason = "decode"
	ReasonNullBody  Reason = "null_body"
	ReasonNotAList  Reason = "not_a_list"
)

// Error explains why a fetch produced no records.
type Error struct {
	Reason     Reason
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("attempts api %s (HTTP %d): %v", e.Reason, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("attempts api %s: %v", e.Reason, e.Err)
	default:
		return fmt.Sprintf("attempts api %s", e.Reason)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the failure reason from err, or "" when err is not a
// fetch error.
func ReasonOf(err error) Reason {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

type Credentials struct {
	Client    string
	ClientKey string
}

type Client struct {
	url   string
	creds Credentials
	http  *http.Client
	log   *zap.SugaredLogger
}

// NewClient builds a client without a request timeout: the API is called
// once per run and the run waits for it.
func NewClient(endpoint string, creds Credentials, httpClient *http.Client, log *zap.SugaredLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{url: endpoint, creds: creds, http: httpClient, log: log}
}

func (c *Client) params(window models.Window) url.Values {
	return url.Values{
		"client":     {c.creds.Client},
		"client_key": {c.creds.ClientKey},
		"start":      {window.FormattedStart()},
		"end":        {window.FormattedEnd()},
	}
}

// Fetch performs a single GET for the window. On any failure it returns no
// records and an *Error.
func (c *Client) Fetch(ctx context.Context, window models.Window) ([]models.RawAttempt, error) {
	c.log.Infof("Attempting to fetch data from API: %s", c.url)

	u, err := url.Parse(c.url)
	if err != nil {
		return nil, &Error{Reason: ReasonTransport, Err: err}
	}
	q := u.Query()
	for k, v := range c.params(window) {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Reason: ReasonTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Reason: ReasonTransport, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Reason:     ReasonStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", truncate(body, 200)),
		}
	}

	records, err := decode(body)
	if err != nil {
		return nil, err
	}

	c.log.Infof("Data fetching completed successfully. Fetched %d records.", len(records))
	return records, nil
}

func decode(body []byte) ([]models.RawAttempt, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, &Error{Reason: ReasonDecode, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &Error{Reason: ReasonDecode, Err: fmt.Errorf("unexpected data after the JSON value")}
	}

	switch v := payload.(type) {
	case nil:
		return nil, &Error{Reason: ReasonNullBody}
	case []any:
		records := make([]models.RawAttempt, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				// a non-object element still yields a row of NULLs downstream
				m = map[string]any{}
			}
			records = append(records, models.RawAttempt(m))
		}
		return records, nil
	default:
		return nil, &Error{Reason: ReasonNotAList, Err: fmt.Errorf("got %T", payload)}
	}
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
