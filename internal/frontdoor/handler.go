// Package frontdoor is the public edge of the gateway: it applies the CORS
// allow-list and per-client throttling, turns brief requests into prompts and
// answers with the normalized completion.
package frontdoor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/biladesigns/brief-gateway/internal/domain"
	"github.com/biladesigns/brief-gateway/internal/metrics"
	"github.com/biladesigns/brief-gateway/internal/normalize"
	"github.com/biladesigns/brief-gateway/internal/ratelimit"
	"github.com/biladesigns/brief-gateway/internal/server"
	"github.com/biladesigns/brief-gateway/internal/validation"
)

// UnknownClient identifies callers without a client IP header.
const UnknownClient = "unknown"

const (
	allowMethods = "POST, OPTIONS"
	allowHeaders = "Content-Type"
	maxAge       = "86400"
)

// Messages returned to the browser.
const (
	msgMethodNotAllowed = "method not allowed"
	msgTooManyRequests  = "too many requests, try again later"
	msgInvalidBody      = "invalid request body"
	msgPromptTooLong    = "request is too long, shorten the details provided"
	msgServerError      = "server error, try again later"
)

// Completer performs the upstream completion call.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Renderer builds the prompt for a validated request.
type Renderer interface {
	Render(t domain.RequestType, ctx domain.Context) (string, error)
}

// TokenCounter measures a prompt before it is sent upstream.
type TokenCounter interface {
	CountPrompt(model, prompt string) (int, error)
}

// Config holds the edge policy.
type Config struct {
	// AllowedOrigins is the CORS allow-list. The first entry is returned to
	// origins that are not on the list.
	AllowedOrigins []string

	// ClientIPHeader names the trusted header carrying the client address.
	ClientIPHeader string

	// MaxBodyBytes bounds the request body; zero means unbounded.
	MaxBodyBytes int64

	// MaxPromptTokens rejects longer prompts when positive. It needs a
	// TokenCounter and the upstream Model.
	MaxPromptTokens int
	Model           string
}

// Option configures optional Handler collaborators.
type Option func(*Handler)

// WithTokenCounter enables the prompt token budget.
func WithTokenCounter(c TokenCounter) Option {
	return func(h *Handler) {
		h.counter = c
	}
}

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// Handler serves brief requests on any path.
type Handler struct {
	cfg      Config
	limiter  *ratelimit.Limiter
	renderer Renderer
	upstream Completer
	counter  TokenCounter
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewHandler creates a Handler.
func NewHandler(cfg Config, limiter *ratelimit.Limiter, renderer Renderer, upstream Completer, opts ...Option) *Handler {
	h := &Handler{
		cfg:      cfg,
		limiter:  limiter,
		renderer: renderer,
		upstream: upstream,
		tracer:   otel.Tracer("github.com/biladesigns/brief-gateway/internal/frontdoor"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// response is the JSON body of every non-preflight answer.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.setCORSHeaders(w.Header(), r.Header.Get("Origin"))

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		h.metrics.ObserveRequest("", http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", allowMethods)
		h.fail(w, r, "", http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	client := h.clientIdentity(r)
	server.AddLogField(ctx, "client", client)

	decision := h.limiter.Check(client)
	server.SetRateLimitHeaders(w.Header(), decision)
	if !decision.Allowed {
		h.metrics.RateLimited()
		h.fail(w, r, "", http.StatusTooManyRequests, msgTooManyRequests)
		return
	}

	body := r.Body
	if h.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		server.AddError(ctx, err)
		h.fail(w, r, "", http.StatusBadRequest, msgInvalidBody)
		return
	}

	// t is empty for an unrecognized type.
	t, _ := domain.ParseRequestType(env.Type)
	if err := validation.Validate(env); err != nil {
		server.AddError(ctx, err)
		h.fail(w, r, t, http.StatusBadRequest, err.Error())
		return
	}
	server.AddLogField(ctx, "type", t.String())
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("brief.type", t.String()))

	prompt, err := h.renderer.Render(t, env.Context)
	if err != nil {
		server.AddError(ctx, fmt.Errorf("render prompt: %w", err))
		h.fail(w, r, t, http.StatusInternalServerError, msgServerError)
		return
	}

	if tooLong := h.checkPromptBudget(ctx, prompt); tooLong {
		h.fail(w, r, t, http.StatusBadRequest, msgPromptTooLong)
		return
	}

	raw, err := h.complete(ctx, prompt)
	if err != nil {
		var upErr *domain.UpstreamError
		if errors.As(err, &upErr) && upErr.StatusCode != 0 {
			server.AddLogField(ctx, "upstream_status", strconv.Itoa(upErr.StatusCode))
		}
		server.AddError(ctx, err)
		h.fail(w, r, t, http.StatusInternalServerError, msgServerError)
		return
	}

	h.write(w, r, t, http.StatusOK, response{Success: true, Data: normalize.Normalize(t, raw)})
}

// complete wraps the upstream call in its own span and records its latency.
func (h *Handler) complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := h.tracer.Start(ctx, "upstream.complete", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	start := time.Now()
	raw, err := h.upstream.Complete(ctx, prompt)
	h.metrics.ObserveUpstream(time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream completion failed")
	}
	return raw, err
}

// checkPromptBudget reports whether prompt exceeds MaxPromptTokens. A counting
// failure is logged and lets the prompt through.
func (h *Handler) checkPromptBudget(ctx context.Context, prompt string) bool {
	if h.cfg.MaxPromptTokens <= 0 || h.counter == nil {
		return false
	}
	n, err := h.counter.CountPrompt(h.cfg.Model, prompt)
	if err != nil {
		server.AddLogField(ctx, "token_count_error", err.Error())
		return false
	}
	server.AddLogField(ctx, "prompt_tokens", strconv.Itoa(n))
	return n > h.cfg.MaxPromptTokens
}

// setCORSHeaders echoes origin only on an exact allow-list match.
func (h *Handler) setCORSHeaders(hdr http.Header, origin string) {
	allowed := ""
	if len(h.cfg.AllowedOrigins) > 0 {
		allowed = h.cfg.AllowedOrigins[0]
	}
	if origin != "" && slices.Contains(h.cfg.AllowedOrigins, origin) {
		allowed = origin
	}

	hdr.Set("Access-Control-Allow-Origin", allowed)
	hdr.Set("Access-Control-Allow-Methods", allowMethods)
	hdr.Set("Access-Control-Allow-Headers", allowHeaders)
	hdr.Set("Access-Control-Max-Age", maxAge)
	hdr.Add("Vary", "Origin")
}

// clientIdentity returns the first address in the trusted client IP header,
// or UnknownClient.
func (h *Handler) clientIdentity(r *http.Request) string {
	if h.cfg.ClientIPHeader == "" {
		return UnknownClient
	}
	v := r.Header.Get(h.cfg.ClientIPHeader)
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return UnknownClient
}

// decodeEnvelope parses {type, context}. A context that is absent, null or
// not an object decodes to a nil Context and is reported by validation.
func decodeEnvelope(body io.Reader) (domain.Envelope, error) {
	var raw struct {
		Type    string          `json:"type"`
		Context json.RawMessage `json:"context"`
	}
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return domain.Envelope{}, fmt.Errorf("decode request body: %w", err)
	}

	env := domain.Envelope{Type: raw.Type}
	if trimmed := bytes.TrimSpace(raw.Context); len(trimmed) > 0 && trimmed[0] == '{' {
		var c domain.Context
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return domain.Envelope{}, fmt.Errorf("decode context: %w", err)
		}
		env.Context = c
	}
	return env, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, requestType domain.RequestType, status int, msg string) {
	h.write(w, r, requestType, status, response{Success: false, Error: msg})
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, requestType domain.RequestType, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		server.AddLogField(r.Context(), "write_error", err.Error())
	}
	h.metrics.ObserveRequest(string(requestType), status)
}
