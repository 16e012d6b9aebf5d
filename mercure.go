package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// MercurePublisher forwards updates to an external Mercure hub so browser
// dashboards can subscribe there instead of holding a connection to this process.
type MercurePublisher struct {
	client *resty.Client
	url    string
	secret []byte
}

func NewMercurePublisher(cfg MercureConfig) *MercurePublisher {
	client := resty.New()
	client.SetTimeout(10 * time.Second)

	return &MercurePublisher{
		client: client,
		url:    cfg.URL,
		secret: []byte(cfg.JWTSecret),
	}
}

// publisherToken mints a short-lived JWT allowed to publish on every topic.
func (m *MercurePublisher) publisherToken() (string, error) {
	claims := jwt.MapClaims{
		"mercure": map[string]interface{}{
			"publish": []string{"*"},
		},
		"exp": time.Now().Add(time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *MercurePublisher) Publish(ctx context.Context, topic, payload string) error {
	token, err := m.publisherToken()
	if err != nil {
		return fmt.Errorf("failed to sign mercure token: %w", err)
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetFormData(map[string]string{
			"topic": topic,
			"data":  payload,
		}).
		Post(m.url)
	if err != nil {
		return fmt.Errorf("failed to publish to mercure: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mercure hub returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
