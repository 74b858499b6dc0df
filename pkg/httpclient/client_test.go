package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/richxcame/rental-risk/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Timeout(t *testing.T) {
	assert.Equal(t, defaultTimeout, NewClient("https://screening.example.com").httpClient.Timeout)
	assert.Equal(t, defaultTimeout, NewClient("https://screening.example.com", 0).httpClient.Timeout)
	assert.Equal(t, 5*time.Second, NewClient("https://screening.example.com", 5*time.Second, time.Minute).httpClient.Timeout)
}

func TestClient_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checks/dmv", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "host-1", body["host_id"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"passed":true}`))
	}))
	defer server.Close()

	body, err := NewClient(server.URL).Post(context.Background(), "/checks/dmv",
		map[string]string{"host_id": "host-1"}, map[string]string{"Authorization": "Bearer k"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"passed":true}`, string(body))
}

func TestClient_PostWithIdempotency(t *testing.T) {
	var keys []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.PostWithIdempotency(context.Background(), "/x", nil, nil, "stage-123")
	require.NoError(t, err)
	_, err = client.PostWithIdempotency(context.Background(), "/x", nil, nil, "")
	require.NoError(t, err)

	require.Len(t, keys, 2)
	assert.Equal(t, "stage-123", keys[0])
	assert.NotEmpty(t, keys[1])
}

func TestClient_NonSuccessIsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("unknown host"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Get(context.Background(), "/hosts/1", nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "HTTP 404: unknown host", httpErr.Error())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL).Apply(WithRetry(resilience.RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 2,
		RetryableChecker:  isHTTPRetryable,
	}))

	body, err := client.Get(context.Background(), "/flaky", nil)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL).Apply(WithRetry(resilience.RetryConfig{
		MaxAttempts:      3,
		InitialBackoff:   time.Millisecond,
		MaxBackoff:       time.Millisecond,
		RetryableChecker: isHTTPRetryable,
	}))

	_, err := client.Get(context.Background(), "/bad", nil)

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsHTTPRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"500", &HTTPError{StatusCode: 500}, true},
		{"503", &HTTPError{StatusCode: 503}, true},
		{"429", &HTTPError{StatusCode: 429}, true},
		{"400", &HTTPError{StatusCode: 400}, false},
		{"404", &HTTPError{StatusCode: 404}, false},
		{"transport", errors.New("connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isHTTPRetryable(tt.err))
		})
	}
}
