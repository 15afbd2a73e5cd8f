package bulletinhandler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/session"
	"github.com/ruteri/feldman-vss-backend/vss"
)

// Client fetches public session material. No authentication is needed.
type Client struct {
	// BaseURL is the server address, e.g. http://localhost:8080.
	BaseURL string

	// Client is the underlying HTTP client. Defaults to http.DefaultClient.
	Client *http.Client
}

// NewClient creates a public bulletin client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Client:  http.DefaultClient,
	}
}

// Bulletin fetches a session's public bulletin.
func (c *Client) Bulletin(sessionID interfaces.SessionID) (*session.Bulletin, error) {
	var bulletin session.Bulletin
	path := fmt.Sprintf("/api/public/sessions/%s", sessionID)
	if err := c.get(path, &bulletin); err != nil {
		return nil, err
	}
	return &bulletin, nil
}

// Parameters fetches a session's group parameters.
func (c *Client) Parameters(sessionID interfaces.SessionID) (*vss.Parameters, error) {
	var params vss.Parameters
	path := fmt.Sprintf("/api/public/sessions/%s/parameters", sessionID)
	if err := c.get(path, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

func (c *Client) get(path string, response any) error {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("could not request server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read server response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("could not parse server response: %w", err)
	}
	return nil
}
