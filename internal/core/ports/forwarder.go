package ports

import (
	"context"
	"net/http"
)

// RequestForwarder sends an inbound request to the container and returns its
// response unchanged.
type RequestForwarder interface {
	Forward(ctx context.Context, req *http.Request) (*http.Response, error)
}
