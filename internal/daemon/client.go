package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
)

// Client talks to a running daemon over its Unix socket.
type Client struct {
	http   *http.Client
	cookie string
}

// NewClient connects to the daemon rooted at dataDir. It fails with
// ErrDaemonNotRunning if no socket file exists there.
func NewClient(dataDir string) (*Client, error) {
	socketPath := SocketPath(dataDir)
	if _, err := os.Stat(socketPath); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDaemonNotRunning
		}
		return nil, err
	}

	cookie, err := os.ReadFile(CookiePath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("daemon: read cookie: %w", err)
	}

	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			// No blanket Timeout: the event stream is long-lived and
			// would be killed by one. Short-lived calls rely on the
			// context the caller passes to do().
		},
		cookie: strings.TrimSpace(string(cookie)),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cookie)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errResp ErrorResponse
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("daemon: %s", errResp.Error)
		}
		return fmt.Errorf("daemon: unexpected status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetNode fetches this node's identity and listen addresses.
func (c *Client) GetNode(ctx context.Context) (NodeResponse, error) {
	var out NodeResponse
	err := c.do(ctx, http.MethodGet, "/v1/node", nil, &out)
	return out, err
}

// CreateBlob imports path and returns a fetch ticket for it.
func (c *Client) CreateBlob(ctx context.Context, path string) (string, error) {
	var out CreateBlobResponse
	err := c.do(ctx, http.MethodPost, "/v1/blobs", CreateBlobRequest{Path: path}, &out)
	return out.Ticket, err
}

// FetchBlob downloads the blob named by ticket to destination.
func (c *Client) FetchBlob(ctx context.Context, ticket, destination string) error {
	return c.do(ctx, http.MethodPost, "/v1/blobs/fetch", FetchBlobRequest{Ticket: ticket, Destination: destination}, nil)
}

// CreateGossipTicket starts a new sync topic and returns its ticket.
func (c *Client) CreateGossipTicket(ctx context.Context) (string, error) {
	var out CreateGossipTicketResponse
	err := c.do(ctx, http.MethodPost, "/v1/gossip/ticket", nil, &out)
	return out.Ticket, err
}

// JoinGossip joins the topic named by ticket.
func (c *Client) JoinGossip(ctx context.Context, ticket string) error {
	return c.do(ctx, http.MethodPost, "/v1/gossip/join", JoinGossipRequest{Ticket: ticket}, nil)
}

// GetClipboardSharing reports whether clipboard sharing is enabled.
func (c *Client) GetClipboardSharing(ctx context.Context) (bool, error) {
	var out ClipboardSharingResponse
	err := c.do(ctx, http.MethodGet, "/v1/clipboard/sharing", nil, &out)
	return out.Enabled, err
}

// SetClipboardSharing enables or disables clipboard sharing.
func (c *Client) SetClipboardSharing(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPut, "/v1/clipboard/sharing", SetClipboardSharingRequest{Enabled: enabled}, nil)
}

// Events opens the NDJSON event stream and returns the raw response
// body for the caller to decode line by line; the caller must close it.
func (c *Client) Events(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/v1/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cookie)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var errResp ErrorResponse
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("daemon: %s", errResp.Error)
	}
	return resp.Body, nil
}
