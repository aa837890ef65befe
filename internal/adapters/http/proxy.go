package http

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/melih/lighthouse-router/internal/core/ports"
)

// ProxyHandler relays every request to the container.
type ProxyHandler struct {
	forwarder ports.RequestForwarder
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(forwarder ports.RequestForwarder) *ProxyHandler {
	return &ProxyHandler{forwarder: forwarder}
}

// ProxyRequest converts the fiber request, forwards it, and copies the
// container's response back. Forwarding errors are returned to fiber's
// error handler.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	req, err := adaptor.ConvertRequest(c, true)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request")
	}

	resp, err := h.forwarder.Forward(c.UserContext(), req)
	if err != nil {
		return err
	}
	return writeResponse(c, resp)
}

// writeResponse copies status, headers and body. The body is streamed and
// closed by fasthttp once sent.
//
// fasthttp treats Date as server-managed and drops it from Set/Add, so the
// header block is handed to its parser instead. With the app's default Date
// disabled, a parsed Date is written back as received.
func writeResponse(c *fiber.Ctx, resp *http.Response) error {
	out := c.Response()
	out.Header.SetNoDefaultContentType(true)

	var raw bytes.Buffer
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	raw.WriteString("HTTP/1.1 " + status + "\r\n")

	h := resp.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Del("Content-Length")
	h.Del("Transfer-Encoding")
	if resp.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	} else {
		h.Set("Transfer-Encoding", "chunked")
	}
	if err := h.Write(&raw); err != nil {
		resp.Body.Close()
		return fmt.Errorf("failed to encode response headers: %w", err)
	}
	raw.WriteString("\r\n")

	if err := out.Header.Read(bufio.NewReaderSize(&raw, raw.Len()+16)); err != nil {
		resp.Body.Close()
		return fmt.Errorf("failed to copy response headers: %w", err)
	}
	out.SetBodyStream(resp.Body, int(resp.ContentLength))
	return nil
}
