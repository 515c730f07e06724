package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"tda/internal/logging"
)

// notificationEvent is the only named SSE event the backend pushes; anything
// else on the stream (comments, keepalive pings) is dropped here.
const notificationEvent = "notification"

var ErrMissingIdentity = errors.New("user identity required for subscription")

// Subscribe opens one push channel scoped to the given user and returns raw
// notification bodies. The channel closes when the stream ends for any
// reason; reconnecting is the caller's policy, not this layer's.
func (c *Client) Subscribe(ctx context.Context, userUUID string) (<-chan []byte, func(), error) {
	if strings.TrimSpace(userUUID) == "" {
		return nil, nil, ErrMissingIdentity
	}

	ctx, cancel := context.WithCancel(ctx)
	endpoint := fmt.Sprintf("%s/api/notifications/subscribe?user_uuid=%s",
		c.baseURL, url.QueryEscape(userUUID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if token := c.auth.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: the stream is meant to live for the life of the UI.
	httpClient := &http.Client{}
	resp, err := httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("subscribe: %s", resp.Status)
	}

	ch := make(chan []byte, 256)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		count := 0
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		eventName := ""
		var dataLines []string

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if len(dataLines) > 0 && (eventName == "" || eventName == notificationEvent) {
					payload := strings.Join(dataLines, "\n")
					select {
					case ch <- []byte(payload):
						count++
					default:
						c.log.Warn("notification dropped, consumer behind")
					}
				}
				eventName = ""
				dataLines = dataLines[:0]
				continue
			}
			switch {
			case strings.HasPrefix(line, "event:"):
				eventName = strings.TrimSpace(line[len("event:"):])
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			c.log.Warn("notification stream closed", logging.F("err", err))
		}
		c.log.Debug("notification stream ended", logging.F("delivered", count))
	}()

	return ch, cancel, nil
}
