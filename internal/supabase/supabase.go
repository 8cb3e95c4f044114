package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/config"
	"healthtracker-doctors/internal/metrics"
)

// Client talks to the hosted auth service over its REST API.
type Client struct {
	config     *config.Config
	httpClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{config: cfg, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (s *Client) SignIn(ctx context.Context, email, password string) (resp *SignInResponse, err error) {
	defer metrics.ObserveRemote("auth.sign_in", time.Now(), &err)

	url := fmt.Sprintf("%s/auth/v1/token?grant_type=password", s.config.Supabase.URL)
	var result SignInResponse
	if err := s.post(ctx, "sign in", url, s.config.Supabase.AnonKey, false, SignInRequest{
		Email:    email,
		Password: password,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type AdminCreateUserRequest struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// AdminCreateUser creates a confirmed auth user with the service role key.
func (s *Client) AdminCreateUser(ctx context.Context, email, password string, userMetadata map[string]interface{}) (user *User, err error) {
	defer metrics.ObserveRemote("auth.admin_create_user", time.Now(), &err)

	url := fmt.Sprintf("%s/auth/v1/admin/users", s.config.Supabase.URL)
	var result User
	if err := s.post(ctx, "create auth user", url, s.config.Supabase.ServiceRoleKey, true, AdminCreateUserRequest{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
		UserMetadata: userMetadata,
	}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Client) post(ctx context.Context, op, url, key string, bearer bool, body, out interface{}) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return err
	}

	req.Header.Set("apikey", key)
	if bearer {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperror.Remote(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var errResp map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &apperror.RemoteError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     errorMessage(errResp),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Remote(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func errorMessage(errResp map[string]interface{}) string {
	for _, key := range []string{"msg", "error_description", "message", "error"} {
		if m, ok := errResp[key].(string); ok && m != "" {
			return m
		}
	}
	return "unknown error"
}
