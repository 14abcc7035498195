package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_CreateChatCompletion(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`))
	}))
	defer srv.Close()

	temp := float32(0.7)
	c := NewClient("sk-test", WithBaseURL(srv.URL+"/v1/"))
	resp, err := c.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:       "gpt-4o-mini",
		Messages:    []ChatCompletionMessage{{Role: "user", Content: "hi"}},
		MaxTokens:   500,
		Temperature: &temp,
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion() error = %v", err)
	}

	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "hello" {
		t.Errorf("unexpected choices: %+v", resp.Choices)
	}
	if resp.Usage.TotalTokens != 6 {
		t.Errorf("Usage.TotalTokens = %d, want 6", resp.Usage.TotalTokens)
	}
	if got.MaxTokens != 500 || got.Temperature == nil || *got.Temperature != temp {
		t.Errorf("request sampling params not forwarded: %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestClient_HTTPError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantAPI bool
	}{
		{
			name:    "openai error object",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantAPI: true,
		},
		{
			name:   "plain text body",
			status: http.StatusBadGateway,
			body:   "upstream connect error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient("k", WithBaseURL(srv.URL)).CreateChatCompletion(context.Background(), &ChatCompletionRequest{})
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("error = %v, want *HTTPError", err)
			}
			if httpErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, tt.status)
			}
			if string(httpErr.Body) != tt.body {
				t.Errorf("Body = %q, want %q", httpErr.Body, tt.body)
			}
			if (httpErr.API != nil) != tt.wantAPI {
				t.Errorf("API = %+v, wantAPI %v", httpErr.API, tt.wantAPI)
			}
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient("k", WithBaseURL(url)).CreateChatCompletion(context.Background(), &ChatCompletionRequest{})
	if err == nil {
		t.Fatal("expected an error from a closed server")
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		t.Errorf("transport failure reported as HTTP error: %v", err)
	}
}

func TestParseErrorResponse(t *testing.T) {
	apiErr, err := ParseErrorResponse([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
	if err != nil {
		t.Fatalf("ParseErrorResponse() error = %v", err)
	}
	if apiErr.Error() != "rate_limit_exceeded: slow down" {
		t.Errorf("Error() = %q", apiErr.Error())
	}

	apiErr, err = ParseErrorResponse([]byte(`{"detail":"x"}`))
	if err != nil || apiErr != nil {
		t.Errorf("ParseErrorResponse() = %v, %v; want nil, nil", apiErr, err)
	}
}
