package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/atinyakov/chronos/internal/models"
)

// Stream subscribes to the owner's snapshot stream and calls fn with every
// snapshot received, the current one first. It blocks until ctx is done
// (returning nil) or the connection fails.
func (c *Client) Stream(ctx context.Context, fn func([]models.Capsule)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/capsules/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	err = readEvents(resp.Body, func(event, data string) error {
		if event != "" && event != "snapshot" {
			return nil
		}
		var snapshot []models.Capsule
		if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		fn(normalize(snapshot))
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readEvents parses a server-sent event stream, calling fn once per
// dispatched event. Comment lines are skipped.
func readEvents(r io.Reader, fn func(event, data string) error) error {
	br := bufio.NewReader(r)
	var (
		event string
		data  []string
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(data) > 0 {
				if err := fn(event, strings.Join(data, "\n")); err != nil {
					return err
				}
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}
