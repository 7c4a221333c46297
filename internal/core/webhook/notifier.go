package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"compressor/internal/logger"
)

const (
	DefaultTimeout = 10 * time.Second
	EventCompleted = "job.completed"
)

type Options struct {
	Timeout time.Duration
	Secret  string
}

// Notifier delivers job results to a webhook with a single bounded POST.
type Notifier struct {
	client *http.Client
	opts   Options
	log    *logger.Logger
	now    func() time.Time
}

func NewNotifier(opts Options) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Notifier{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		log:    logger.New("Webhook"),
		now:    time.Now,
	}
}

// Notify reports whether the endpoint answered 2xx. Delivery runs on a
// context detached from ctx's cancellation so a finished job still notifies.
func (n *Notifier) Notify(ctx context.Context, endpoint, jobID string, payload interface{}) bool {
	if endpoint == "" {
		return false
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.LogErrorf("Failed to marshal webhook payload for job %s: %v", jobID, err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		n.log.LogErrorf("Failed to create webhook request for job %s: %v", jobID, err)
		return false
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Compressor/1.0")
	req.Header.Set("X-Compressor-Event", EventCompleted)
	req.Header.Set("X-Compressor-Job-ID", jobID)

	if n.opts.Secret != "" {
		timestamp := strconv.FormatInt(n.now().Unix(), 10)
		req.Header.Set("X-Signature-Timestamp", timestamp)
		req.Header.Set("X-Signature", Sign(n.opts.Secret, timestamp, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.log.LogWarnf("Failed to send webhook for job %s to %s: %v", jobID, endpoint, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		n.log.LogInfof("Sent webhook for job %s to %s (status: %d)", jobID, endpoint, resp.StatusCode)
		return true
	}
	n.log.LogWarnf("Webhook returned status %d for job %s to %s", resp.StatusCode, jobID, endpoint)
	return false
}

// Sign is the hex HMAC-SHA256 of timestamp followed by body.
func Sign(secret, timestamp string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
