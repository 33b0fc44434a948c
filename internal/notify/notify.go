// Package notify posts fire-and-forget JSON notifications. Delivery
// sits outside every transactional boundary: a lost notification never
// rolls back a committed ledger write.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Notifier struct {
	http   *http.Client
	logger *slog.Logger
}

func New(logger *slog.Logger) *Notifier {
	return &Notifier{
		http:   &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Post sends the payload to url and returns any delivery error.
func (n *Notifier) Post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "kobopay-notify/1.0")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("receiver returned %d", resp.StatusCode)
	}
	return nil
}

// Send posts asynchronously and only logs failures.
func (n *Notifier) Send(url string, payload any) {
	go func() {
		if err := n.Post(url, payload); err != nil {
			n.logger.Warn("notification delivery failed", "url", url, "error", err)
		}
	}()
}
