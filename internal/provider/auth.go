package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

const loginPath = "/login/"

// User is the authenticated profile returned by the auth service.
type User struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Session is a bearer credential plus the profile it belongs to.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := decodeErrorMessage(resp.Body)
		if msg == "" {
			msg = "login failed, check your credentials"
		}
		return nil, &types.ServerError{StatusCode: resp.StatusCode, Message: msg}
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, &types.ProtocolError{Message: fmt.Sprintf("undecodable login response: %v", err)}
	}
	if session.Token == "" {
		return nil, &types.ProtocolError{Message: "login response carries no token"}
	}
	return &session, nil
}
