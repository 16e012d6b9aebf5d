package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMercurePublisher_PostsSignedForm(t *testing.T) {
	const secret = "!ChangeThisMercureHubJWTSecretKey!"
	var (
		topic, data string
		claims      jwt.MapClaims
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		topic = r.PostForm.Get("topic")
		data = r.PostForm.Get("data")
		_, _ = w.Write([]byte("urn:uuid:1"))
	}))
	defer srv.Close()

	pub := NewMercurePublisher(MercureConfig{URL: srv.URL + "/.well-known/mercure", JWTSecret: secret})
	require.NoError(t, pub.Publish(context.Background(), "stock/AAPL", `{"symbol":"AAPL"}`))

	assert.Equal(t, "stock/AAPL", topic)
	assert.Equal(t, `{"symbol":"AAPL"}`, data)
	require.Contains(t, claims, "mercure")
	assert.Equal(t, map[string]interface{}{"publish": []interface{}{"*"}}, claims["mercure"])
}

func TestMercurePublisher_WrongSecretFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		_, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte("hub-secret"), nil })
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	pub := NewMercurePublisher(MercureConfig{URL: srv.URL, JWTSecret: "other"})
	err := pub.Publish(context.Background(), "stock/AAPL", "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
