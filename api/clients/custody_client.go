package clients

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/ruteri/waas-signing-service/api"
	"github.com/ruteri/waas-signing-service/interfaces"
)

// ErrStreamEnded is returned when an event stream closes without an event.
var ErrStreamEnded = errors.New("event stream ended without an event")

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// CustodyClient talks to the signing service over HTTP. It keeps the session
// cookie in its own cookie jar, so one client acts as one logged-in user.
type CustodyClient struct {
	// ServerAddr is the base URL of the service
	ServerAddr string

	httpClient *http.Client
}

// NewCustodyClient creates a client for the service at serverAddr.
func NewCustodyClient(serverAddr string) (*CustodyClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("could not create cookie jar: %w", err)
	}

	return &CustodyClient{
		ServerAddr: strings.TrimRight(serverAddr, "/"),
		httpClient: &http.Client{Jar: jar},
	}, nil
}

// Login opens a session for username.
func (c *CustodyClient) Login(ctx context.Context, username, password string) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	err := c.call(ctx, http.MethodPost, "/api/login", api.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout closes the session.
func (c *CustodyClient) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/logout", nil, nil)
}

// Me describes the logged-in user.
func (c *CustodyClient) Me(ctx context.Context) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.call(ctx, http.MethodGet, "/api/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateKey creates the user's key and returns its public half.
func (c *CustodyClient) GenerateKey(ctx context.Context) (*api.KeyResponse, error) {
	var resp api.KeyResponse
	if err := c.call(ctx, http.MethodPost, "/api/key/generate", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DiscardKey destroys the user's key.
func (c *CustodyClient) DiscardKey(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/key/discard", nil, nil)
}

// Sign queues message for signing and returns the ticket to wait on.
func (c *CustodyClient) Sign(ctx context.Context, message string) (*api.SignAccepted, error) {
	var resp api.SignAccepted
	if err := c.call(ctx, http.MethodPost, "/api/sign", api.SignRequest{Message: message}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitForEvent blocks until the outcome of ticketID is streamed or ctx is done.
func (c *CustodyClient) WaitForEvent(ctx context.Context, ticketID string) (*interfaces.SignEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServerAddr+"/api/events/"+ticketID, nil)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not open event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}

	return readEvent(resp.Body)
}

// readEvent returns the first event of a server-sent event stream.
func readEvent(r io.Reader) (*interfaces.SignEvent, error) {
	var data strings.Builder

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var event interfaces.SignEvent
			if err := json.Unmarshal([]byte(data.String()), &event); err != nil {
				return nil, fmt.Errorf("could not parse sign event: %w", err)
			}
			return &event, nil
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read event stream: %w", err)
	}
	return nil, ErrStreamEnded
}

// Retrieve collects the signature of the last signed message.
func (c *CustodyClient) Retrieve(ctx context.Context) (*api.SignedResponse, error) {
	var resp api.SignedResponse
	if err := c.call(ctx, http.MethodGet, "/api/signed", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignAndWait queues message, waits for its outcome and collects the signature.
func (c *CustodyClient) SignAndWait(ctx context.Context, message string) (string, error) {
	ticket, err := c.Sign(ctx, message)
	if err != nil {
		return "", err
	}

	event, err := c.WaitForEvent(ctx, ticket.ID)
	if err != nil {
		return "", err
	}
	if !event.Succeeded() {
		return "", fmt.Errorf("signing failed: %s", event.Error)
	}

	signed, err := c.Retrieve(ctx)
	if err != nil {
		return "", err
	}
	return signed.Signature, nil
}

func (c *CustodyClient) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ServerAddr+path, reader)
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse %s response: %w", path, err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(bodyBytes, &errResp); err == nil && errResp.Error != "" {
		return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(bodyBytes))}
}
