// internal/notify/pushover.go - Pushover alerts for failing cron jobs
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"missionctl/internal/config"
	"missionctl/internal/database"
)

const (
	PushoverAPIURL = "https://api.pushover.net/1/messages.json"
	UserAgent      = "Mission Control/1.0"
)

// PushoverMessage represents a message sent to the Pushover API
type PushoverMessage struct {
	Token     string `json:"token"`
	User      string `json:"user"`
	Message   string `json:"message"`
	Title     string `json:"title,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// PushoverResponse represents the API response
type PushoverResponse struct {
	Status int      `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

// Notifier sends a Pushover alert for every unhealthy job in an ingested
// batch, rate-limited per job name.
type Notifier struct {
	config     *config.NotificationConfig
	httpClient *http.Client

	mu        sync.Mutex
	lastSends map[string][]time.Time
}

func NewNotifier(cfg *config.NotificationConfig) *Notifier {
	return &Notifier{
		config:     cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		lastSends:  make(map[string][]time.Time),
	}
}

func (n *Notifier) Enabled() bool {
	return n.config != nil && n.config.Enabled && n.config.Pushover.Enabled
}

// NotifyUnhealthy alerts on every error, stale or no_logs job in the batch.
// Send failures are logged, never propagated: alerting must not fail an
// ingestion that already committed.
func (n *Notifier) NotifyUnhealthy(ctx context.Context, checks []database.HealthCheck) {
	if !n.Enabled() {
		return
	}

	for _, check := range checks {
		switch check.Status {
		case database.HealthError, database.HealthStale, database.HealthNoLogs:
		default:
			continue
		}

		if n.throttled(check.JobName) {
			logrus.WithField("job", check.JobName).Debug("Notification throttled")
			continue
		}

		if err := n.send(ctx, check); err != nil {
			logrus.WithError(err).WithField("job", check.JobName).Error("Failed to send notification")
			continue
		}
		n.recordSend(check.JobName)
	}
}

func (n *Notifier) send(ctx context.Context, check database.HealthCheck) error {
	message := fmt.Sprintf("%s %s on %s", statusEmoji(check.Status), check.JobName, check.Hostname)
	if check.ErrorMessage != "" {
		message += ": " + check.ErrorMessage
	}

	payload := PushoverMessage{
		Token:     n.config.Pushover.APIToken,
		User:      n.config.Pushover.UserKey,
		Message:   message,
		Title:     n.config.Pushover.Title,
		Timestamp: check.CollectedAt / 1000,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal pushover message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, PushoverAPIURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var pr PushoverResponse
	if err := json.Unmarshal(body, &pr); err != nil || pr.Status != 1 {
		return fmt.Errorf("pushover rejected message (HTTP %d): %s", resp.StatusCode, body)
	}

	return nil
}

func (n *Notifier) throttled(jobName string) bool {
	throttle := n.config.Pushover.Throttle
	if !throttle.Enabled {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	cutoff := time.Now().Add(-throttle.Window)
	recent := n.lastSends[jobName][:0]
	for _, t := range n.lastSends[jobName] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	n.lastSends[jobName] = recent

	return len(recent) >= throttle.MaxPerJob
}

func (n *Notifier) recordSend(jobName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastSends[jobName] = append(n.lastSends[jobName], time.Now())
}

func statusEmoji(status string) string {
	switch status {
	case database.HealthError:
		return "🔴"
	case database.HealthStale:
		return "🟡"
	case database.HealthNoLogs:
		return "⚪"
	default:
		return "🟢"
	}
}
