package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prperemyshlev/identity-gateway/internal/config"
)

// GoTrueError is a non-2xx answer from the Supabase auth API
type GoTrueError struct {
	Status  int
	Message string
}

func (e *GoTrueError) Error() string {
	return fmt.Sprintf("supabase auth returned %d: %s", e.Status, e.Message)
}

// clientError reports whether the request itself was rejected (bad, expired or used token)
func (e *GoTrueError) clientError() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}

// SupabaseClient calls the Supabase GoTrue auth endpoints used by email flows
type SupabaseClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewSupabaseClient creates a new client; httpClient may be nil
func NewSupabaseClient(cfg config.SupabaseConfig, httpClient *http.Client) *SupabaseClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SupabaseClient{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		anonKey:    cfg.AnonKey,
		httpClient: httpClient,
	}
}

// SendOTP emails a one-time code, creating the Supabase user when needed
func (c *SupabaseClient) SendOTP(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/otp", "", map[string]interface{}{
		"email":       email,
		"create_user": true,
	}, nil)
}

// VerifyOTP redeems an emailed code and returns the Supabase access token
func (c *SupabaseClient) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	var session struct {
		AccessToken string `json:"access_token"`
	}
	err := c.do(ctx, http.MethodPost, "/verify", "", map[string]string{
		"type":  "email",
		"email": email,
		"token": code,
	}, &session)
	if err != nil {
		return "", err
	}
	if session.AccessToken == "" {
		return "", &GoTrueError{Status: http.StatusBadGateway, Message: "verify returned no session"}
	}
	return session.AccessToken, nil
}

// Recover emails a password-reset link
func (c *SupabaseClient) Recover(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/recover", "", map[string]string{"email": email}, nil)
}

// UpdatePassword sets the password of the user owning accessToken
func (c *SupabaseClient) UpdatePassword(ctx context.Context, accessToken, password string) error {
	return c.do(ctx, http.MethodPut, "/user", accessToken, map[string]string{"password": password}, nil)
}

func (c *SupabaseClient) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Msg              string `json:"msg"`
			Message          string `json:"message"`
			ErrorDescription string `json:"error_description"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &apiErr)

		msg := apiErr.Msg
		if msg == "" {
			msg = apiErr.Message
		}
		if msg == "" {
			msg = apiErr.ErrorDescription
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &GoTrueError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode supabase response: %w", err)
		}
	}
	return nil
}
