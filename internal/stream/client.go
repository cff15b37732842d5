package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ramones1960/analyze-tle/internal/metrics"
)

const writeTimeout = 30 * time.Second

// client writes SSE frames to one connection.
type client struct {
	w       io.Writer
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger

	messagesSent int
}

// extendDeadline pushes the write deadline forward before each frame, since
// the server-wide WriteTimeout was cleared for this connection.
func (c *client) extendDeadline() {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "component", "stream", "error", err)
	}
}

// sendJSON writes v as a "data:" frame.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	c.extendDeadline()
	if _, err := fmt.Fprintf(c.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	c.messagesSent++
	metrics.IncStreamMessages()
	return nil
}

// sendRetry tells the browser how long to wait before reconnecting.
func (c *client) sendRetry(d time.Duration) error {
	if _, err := fmt.Fprintf(c.w, "retry: %d\n\n", d.Milliseconds()); err != nil {
		return fmt.Errorf("retry write: %w", err)
	}
	c.flusher.Flush()
	return nil
}

// sendKeepalive writes an SSE comment.
func (c *client) sendKeepalive() error {
	c.extendDeadline()
	if _, err := fmt.Fprint(c.w, ":\n\n"); err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	c.flusher.Flush()
	return nil
}
