// Package notify forwards selected auction events to operator chat channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/alanyoungcy/batchauction/internal/domain"
)

// Sender is a single delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans events out to every Sender. Only kinds in the configured set
// are forwarded; an empty set forwards everything.
type Notifier struct {
	senders []Sender
	kinds   map[domain.NotificationKind]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for the given senders and event kinds.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	kinds := make(map[domain.NotificationKind]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			kinds[domain.NotificationKind(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		kinds:   kinds,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether events of kind k would be delivered.
func (n *Notifier) Enabled(k domain.NotificationKind) bool {
	if len(n.senders) == 0 {
		return false
	}
	return len(n.kinds) == 0 || n.kinds[k]
}

// Notify renders the event and delivers it to every sender.
func (n *Notifier) Notify(ctx context.Context, ev domain.Event) error {
	if !n.Enabled(ev.Kind) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("kind", string(ev.Kind)))
		return nil
	}
	title, message := Render(ev)
	return n.dispatch(ctx, title, message)
}

// Render formats an event as a title and a "key: value" body sorted by key.
func Render(ev domain.Event) (title, message string) {
	title = fmt.Sprintf("Auction %d: %s", ev.AuctionID, ev.Kind)

	keys := make([]string, 0, len(ev.Detail))
	for k := range ev.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	if ev.OrderID != 0 {
		fmt.Fprintf(&b, "order: %d\n", ev.OrderID)
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, ev.Detail[k])
	}
	return title, strings.TrimSuffix(b.String(), "\n")
}

// dispatch delivers to all senders; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// postJSON sends payload to url and treats any non-2xx status as an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
