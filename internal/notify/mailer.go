package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"studio-management-api/internal/core"
	"studio-management-api/internal/logger"
)

type Config struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	Timeout   time.Duration
	QueueSize int
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:    strings.TrimSpace(os.Getenv("MAIL_API_KEY")),
		BaseURL:   strings.TrimSpace(os.Getenv("MAIL_BASE_URL")),
		FromEmail: strings.TrimSpace(os.Getenv("MAIL_FROM_EMAIL")),
		FromName:  strings.TrimSpace(os.Getenv("MAIL_FROM_NAME")),
	}
}

// Mailer sends lifecycle emails through an HTTP mail API. Notify only
// enqueues; a single worker drains the queue with a bounded per-send
// timeout, so callers never wait on delivery.
type Mailer struct {
	cfg    Config
	client *http.Client
	log    *logger.Logger
	queue  chan core.Event
	done   chan struct{}
}

var _ core.Dispatcher = (*Mailer)(nil)

func NewMailer(log *logger.Logger, cfg Config) (*Mailer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing MAIL_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sendgrid.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("missing MAIL_FROM_EMAIL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	m := &Mailer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
		queue:  make(chan core.Event, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go m.run()
	return m, nil
}

func (m *Mailer) Notify(ctx context.Context, ev core.Event) error {
	select {
	case m.queue <- ev:
		return nil
	default:
		return errors.New("notification queue full")
	}
}

func (m *Mailer) Close() {
	close(m.queue)
	<-m.done
}

const sendAttempts = 3

func (m *Mailer) run() {
	defer close(m.done)
	for ev := range m.queue {
		var err error
		for attempt := 1; attempt <= sendAttempts; attempt++ {
			if err = m.send(ev); err == nil {
				break
			}
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		if err != nil {
			m.log.Warn("mail send failed", "kind", ev.Kind, "error", err)
		}
	}
}

func (m *Mailer) send(ev core.Event) error {
	subject, body := render(ev)

	payload := map[string]any{
		"personalizations": []map[string]any{{
			"to": []map[string]string{{"email": ev.Recipient.Email, "name": ev.Recipient.Name}},
		}},
		"from":    map[string]string{"email": m.cfg.FromEmail, "name": m.cfg.FromName},
		"subject": subject,
		"content": []map[string]string{{"type": "text/plain", "value": body}},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, m.cfg.BaseURL+"/v3/mail/send", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail api status %d", resp.StatusCode)
	}
	return nil
}

func render(ev core.Event) (subject, body string) {
	p := ev.Payload
	switch ev.Kind {
	case core.EventCreated:
		subject = "Your booking is in"
		body = fmt.Sprintf("Hi %s,\n\nYour %s appointment is booked for %s at %s (status: %s).",
			ev.Recipient.Name, p["type"], p["date"], p["time"], p["status"])
	case core.EventAssigned:
		subject = "An appointment was assigned to you"
		body = fmt.Sprintf("Hi %s,\n\nA %s appointment on %s at %s is now assigned to you.",
			ev.Recipient.Name, p["type"], p["date"], p["time"])
	case core.EventStatusChanged:
		subject = "Booking status updated"
		body = fmt.Sprintf("Hi %s,\n\nYour booking on %s at %s moved from %s to %s.",
			ev.Recipient.Name, p["date"], p["time"], p["oldStatus"], p["newStatus"])
	case core.EventRescheduled:
		subject = "Booking rescheduled"
		body = fmt.Sprintf("Hi %s,\n\nYour booking moved from %s %s to %s %s.",
			ev.Recipient.Name, p["oldDate"], p["oldTime"], p["date"], p["time"])
	case core.EventCancelled:
		subject = "Booking cancelled"
		body = fmt.Sprintf("Hi %s,\n\nYour %s booking on %s at %s was cancelled.",
			ev.Recipient.Name, p["type"], p["date"], p["time"])
	case core.EventAdminNotify:
		subject = "New booking"
		body = fmt.Sprintf("A new %s appointment was booked for %s at %s.",
			p["type"], p["date"], p["time"])
	default:
		subject = "Studio update"
		body = fmt.Sprintf("Hi %s,\n\nThere is an update on your booking.", ev.Recipient.Name)
	}
	return subject, body
}
