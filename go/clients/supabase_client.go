package clients

import (
	"context"
	"encoding/json"
	"fmt"
)

type SupabaseClient struct {
	*BaseClient
}

type SupabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func NewSupabaseClient(baseURL, anonKey string) *SupabaseClient {
	client := &SupabaseClient{BaseClient: NewBaseClient(baseURL)}
	client.SetHeader("apikey", anonKey)
	return client
}

// GetUser resolves an access token through the auth API.
func (c *SupabaseClient) GetUser(ctx context.Context, accessToken string) (SupabaseUser, error) {
	body, err := c.Get(ctx, "/auth/v1/user", map[string]string{"Authorization": "Bearer " + accessToken})
	if err != nil {
		return SupabaseUser{}, fmt.Errorf("verify token: %w", err)
	}

	var user SupabaseUser
	if err := json.Unmarshal(body, &user); err != nil {
		return SupabaseUser{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}
