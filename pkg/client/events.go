package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sse"
	pkgerrors "github.com/pkg/errors"

	"github.com/ladapp/lad/pkg/events"
)

// Subscribe streams daemon events to fn until ctx is done or the daemon
// closes the stream. Keepalive pings are not delivered.
func (c *Client) Subscribe(ctx context.Context, fn func(events.Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/events", nil)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create request")
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to subscribe to events")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("got %d subscribing to events", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	var block strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			block.WriteString(line)
			block.WriteByte('\n')
			continue
		}
		if block.Len() == 0 {
			continue
		}
		decoded, err := sse.Decode(strings.NewReader(block.String() + "\n"))
		block.Reset()
		if err != nil {
			return pkgerrors.Wrapf(err, "failed to decode event")
		}
		for _, e := range decoded {
			if e.Event == "ping" {
				continue
			}
			fn(events.Event{Name: e.Event, Data: eventData(e.Data)})
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// eventData keeps JSON payloads as-is and quotes anything else.
func eventData(d any) json.RawMessage {
	s := fmt.Sprint(d)
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
