package vsshandler

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ruteri/feldman-vss-backend/api"
	"github.com/ruteri/feldman-vss-backend/cryptoutils"
	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/vss"
)

// Client talks to the authenticated session API on behalf of one player
// identity. Every request is signed with the player's private key; the server
// verifies against the roster.
type Client struct {
	// BaseURL is the server address, e.g. http://localhost:8080.
	BaseURL string

	// PlayerID is the identity requests are made as.
	PlayerID interfaces.PlayerID

	// Client is the underlying HTTP client. Defaults to http.DefaultClient.
	Client *http.Client

	signingKey *ecdsa.PrivateKey
}

// NewClient creates an authenticated client for the given identity.
func NewClient(baseURL string, playerID interfaces.PlayerID, privateKeyPEM []byte) (*Client, error) {
	key, err := cryptoutils.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}

	return &Client{
		BaseURL:    baseURL,
		PlayerID:   playerID,
		Client:     http.DefaultClient,
		signingKey: key,
	}, nil
}

// CreateSession asks the server to deal a new sharing session. The caller's
// identity becomes the session's dealer.
func (c *Client) CreateSession(req api.CreateSessionRequest) (*api.CreateSessionResponse, error) {
	var response api.CreateSessionResponse
	if err := c.doSigned(http.MethodPost, "/api/admin/sessions", req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetShare fetches the caller's sealed share for a session.
func (c *Client) GetShare(sessionID interfaces.SessionID) (*api.GetShareResponse, error) {
	var response api.GetShareResponse
	path := fmt.Sprintf("/api/admin/sessions/%s/share", sessionID)
	if err := c.doSigned(http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// FetchAndDecryptShare fetches the caller's sealed share and opens it with
// the given private key.
func (c *Client) FetchAndDecryptShare(sessionID interfaces.SessionID, privateKeyPEM []byte) (vss.Share, error) {
	response, err := c.GetShare(sessionID)
	if err != nil {
		return vss.Share{}, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(response.EncryptedShare)
	if err != nil {
		return vss.Share{}, fmt.Errorf("invalid encrypted share: %w", err)
	}

	shareJSON, err := cryptoutils.DecryptWithPrivateKey(privateKeyPEM, ciphertext)
	if err != nil {
		return vss.Share{}, fmt.Errorf("could not open share: %w", err)
	}

	var share vss.Share
	if err := json.Unmarshal(shareJSON, &share); err != nil {
		return vss.Share{}, fmt.Errorf("invalid share payload: %w", err)
	}
	return share, nil
}

// SubmitShare submits a decrypted share for reconstruction.
// IssuedShares lists every sealed share of a session. Dealer-only.
func (c *Client) IssuedShares(sessionID interfaces.SessionID) (*api.IssuedSharesResponse, error) {
	var response api.IssuedSharesResponse
	path := fmt.Sprintf("/api/admin/sessions/%s/issued", sessionID)
	if err := c.doSigned(http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) SubmitShare(sessionID interfaces.SessionID, req api.SubmitShareRequest) (*api.SubmitShareResponse, error) {
	var response api.SubmitShareResponse
	path := fmt.Sprintf("/api/admin/sessions/%s/shares", sessionID)
	if err := c.doSigned(http.MethodPost, path, req, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetSecret reads the reconstructed secret. Dealer-only.
func (c *Client) GetSecret(sessionID interfaces.SessionID) (*api.SecretResponse, error) {
	var response api.SecretResponse
	path := fmt.Sprintf("/api/admin/sessions/%s/secret", sessionID)
	if err := c.doSigned(http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Retire wipes a session's share material. Dealer-only.
func (c *Client) Retire(sessionID interfaces.SessionID) (*api.RetireResponse, error) {
	var response api.RetireResponse
	path := fmt.Sprintf("/api/admin/sessions/%s/retire", sessionID)
	if err := c.doSigned(http.MethodPost, path, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Status fetches the service and session state summary.
func (c *Client) Status() (*api.StatusResponse, error) {
	var response api.StatusResponse
	if err := c.doSigned(http.MethodGet, "/api/admin/status", nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// PushShare delivers a sealed share to another player's inbox at endpoint.
// Inbox pushes are unauthenticated; possession of the matching private key is
// what the receiver checks.
func PushShare(client *http.Client, endpoint string, req api.InboxShareRequest) (*api.InboxShareResponse, error) {
	if client == nil {
		client = http.DefaultClient
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("could not encode request: %w", err)
	}

	resp, err := client.Post(endpoint+"/api/inbox/share", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("could not push share: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read inbox response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inbox returned %d: %s", resp.StatusCode, string(body))
	}

	var response api.InboxShareResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("could not parse inbox response: %w", err)
	}
	return &response, nil
}

func (c *Client) doSigned(method, path string, request, response any) error {
	var body []byte
	if request != nil {
		var err error
		body, err = json.Marshal(request)
		if err != nil {
			return fmt.Errorf("could not encode request: %w", err)
		}
	}

	signature, err := cryptoutils.SignRequest(c.signingKey, method, path, body)
	if err != nil {
		return fmt.Errorf("could not sign request: %w", err)
	}

	fullURL, err := url.JoinPath(c.BaseURL, path)
	if err != nil {
		return fmt.Errorf("invalid request url: %w", err)
	}

	req, err := http.NewRequest(method, fullURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set(api.PlayerIDHeader, c.PlayerID.String())
	req.Header.Set(api.PlayerSignatureHeader, base64.StdEncoding.EncodeToString(signature))
	if request != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not request server: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read server response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	if response != nil {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("could not parse server response: %w", err)
		}
	}
	return nil
}
