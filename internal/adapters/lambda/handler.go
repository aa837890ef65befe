package lambda

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/melih/lighthouse-router/internal/core/ports"
	"github.com/rs/zerolog"
)

// Handler bridges API Gateway HTTP API (payload v2) events to the forwarder.
type Handler struct {
	forwarder ports.RequestForwarder
	log       zerolog.Logger
}

// NewHandler creates a Lambda handler around forwarder.
func NewHandler(forwarder ports.RequestForwarder, log zerolog.Logger) *Handler {
	return &Handler{forwarder: forwarder, log: log}
}

// Handle forwards the event and converts the container's response. A
// forwarding failure is returned as the invocation error.
func (h *Handler) Handle(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	req, err := toRequest(ctx, ev)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}

	resp, err := h.forwarder.Forward(ctx, req)
	if err != nil {
		h.log.Error().
			Err(err).
			Str("request_id", ev.RequestContext.RequestID).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("request failed")
		return events.APIGatewayV2HTTPResponse{}, err
	}
	defer resp.Body.Close()

	out, err := toResponse(resp)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}
	h.log.Info().
		Str("request_id", ev.RequestContext.RequestID).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", out.StatusCode).
		Msg("request")
	return out, nil
}

func toRequest(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (*http.Request, error) {
	body := []byte(ev.Body)
	if ev.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, fmt.Errorf("decode request body: %w", err)
		}
		body = decoded
	}

	host := ev.RequestContext.DomainName
	if h, ok := header(ev.Headers, "host"); ok {
		host = h
	}
	if host == "" {
		host = "localhost"
	}

	path := ev.RawPath
	if path == "" {
		path = "/"
	}
	u, err := url.Parse("https://" + host + path)
	if err != nil {
		return nil, fmt.Errorf("parse request path %q: %w", path, err)
	}
	u.RawQuery = ev.RawQueryString

	method := ev.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range ev.Headers {
		req.Header.Set(k, v)
	}
	if len(ev.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(ev.Cookies, "; "))
	}
	req.Host = host
	return req, nil
}

func toResponse(resp *http.Response) (events.APIGatewayV2HTTPResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, fmt.Errorf("read container response: %w", err)
	}

	out := events.APIGatewayV2HTTPResponse{
		StatusCode:      resp.StatusCode,
		Headers:         make(map[string]string, len(resp.Header)),
		Body:            base64.StdEncoding.EncodeToString(body),
		IsBase64Encoded: true,
	}
	for k, vs := range resp.Header {
		if http.CanonicalHeaderKey(k) == "Set-Cookie" {
			out.Cookies = append(out.Cookies, vs...)
			continue
		}
		out.Headers[k] = strings.Join(vs, ",")
	}
	return out, nil
}

func header(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
