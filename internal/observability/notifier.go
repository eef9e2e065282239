package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// AlertPayload is the structured delivery body shared by all sinks.
type AlertPayload struct {
	AlertID   string       `json:"alert_id"`
	Severity  string       `json:"severity"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
	Context   AlertContext `json:"context"`
}

func payloadFromAlert(alert Alert) AlertPayload {
	return AlertPayload{
		AlertID:   alert.ID,
		Severity:  string(alert.Severity),
		Title:     alert.Title,
		Message:   alert.Message,
		Timestamp: alert.Timestamp,
		Context:   alert.Context,
	}
}

// AlertSink delivers one alert to an external channel. Send must honor the
// context deadline.
type AlertSink interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// WebhookSink POSTs alert payloads as JSON to a webhook URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink creates a webhook sink for the given URL.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{url: url, client: &http.Client{}}
}

// Name identifies the sink in engine events.
func (s *WebhookSink) Name() string { return "webhook" }

// Send posts the alert payload and treats any non-2xx status as failure.
func (s *WebhookSink) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(payloadFromAlert(alert))
	if err != nil {
		return fmt.Errorf("marshaling alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailConfig configures the SMTP alert sink.
type EmailConfig struct {
	Host string
	Port int
	From string
	To   []string
}

// EmailSink delivers alerts as plain-text email over SMTP.
type EmailSink struct {
	cfg EmailConfig
}

// NewEmailSink creates an email sink from cfg.
func NewEmailSink(cfg EmailConfig) *EmailSink {
	return &EmailSink{cfg: cfg}
}

// Name identifies the sink in engine events.
func (s *EmailSink) Name() string { return "email" }

// Send connects to the SMTP server within the context deadline and sends
// one message per alert.
func (s *EmailSink) Send(ctx context.Context, alert Alert) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dialing smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		// The deadline has to cover the whole SMTP conversation, not
		// just the dial.
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return fmt.Errorf("setting smtp deadline: %w", err)
		}
	}
	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("starting smtp session: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL: %w", err)
	}
	for _, to := range s.cfg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("smtp RCPT %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write([]byte(s.buildMessage(alert))); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing message: %w", err)
	}
	return client.Quit()
}

func (s *EmailSink) buildMessage(alert Alert) string {
	ctxJSON, _ := json.MarshalIndent(alert.Context, "", "  ")
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(string(alert.Severity)), alert.Title)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Agent Pulse Alert\r\n\r\n")
	fmt.Fprintf(&b, "Severity: %s\r\n", strings.ToUpper(string(alert.Severity)))
	fmt.Fprintf(&b, "Time: %s\r\n\r\n", alert.Timestamp.UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Message: %s\r\n\r\n", alert.Message)
	fmt.Fprintf(&b, "Context:\r\n%s\r\n", ctxJSON)
	return b.String()
}

// DispatcherConfig configures the alert delivery worker pool.
type DispatcherConfig struct {
	// Workers is the number of delivery goroutines; <= 0 selects 4.
	Workers int

	// QueueSize bounds the pending-alert queue; <= 0 selects 64. A full
	// queue drops new deliveries rather than blocking error tracking.
	QueueSize int

	// Timeout is the hard per-sink delivery attempt bound; <= 0 selects
	// 10 seconds.
	Timeout time.Duration

	// EventLog receives delivery outcomes. Optional.
	EventLog EventLog
}

// Dispatcher is a bounded worker pool that delivers alerts to every
// configured sink. Delivery is best-effort: failures are logged to the
// event log and never retried, and no failure reaches the tracking path.
type Dispatcher struct {
	sinks    []AlertSink
	queue    chan Alert
	timeout  time.Duration
	eventLog EventLog

	wg        sync.WaitGroup
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(cfg DispatcherConfig, sinks ...AlertSink) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	d := &Dispatcher{
		sinks:    sinks,
		queue:    make(chan Alert, queueSize),
		timeout:  timeout,
		eventLog: cfg.EventLog,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch enqueues the alert for delivery without blocking. If the queue
// is full, or the dispatcher has been closed, the delivery is dropped and
// logged; the alert itself remains recorded by the tracker.
func (d *Dispatcher) Dispatch(alert Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		logEvent(d.eventLog, "WARN", EventAlertDropped, "dispatcher closed, dropping alert", map[string]any{
			"alert_id": alert.ID,
		})
		return
	}
	select {
	case d.queue <- alert:
	default:
		logEvent(d.eventLog, "WARN", EventAlertDropped, "delivery queue full, dropping alert", map[string]any{
			"alert_id": alert.ID,
		})
	}
}

// Close stops accepting alerts and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for alert := range d.queue {
		for _, sink := range d.sinks {
			d.deliver(sink, alert)
		}
	}
}

func (d *Dispatcher) deliver(sink AlertSink, alert Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := sink.Send(ctx, alert); err != nil {
		logEvent(d.eventLog, "ERROR", EventAlertDeliveryFailed, err.Error(), map[string]any{
			"alert_id": alert.ID,
			"sink":     sink.Name(),
		})
		return
	}
	logEvent(d.eventLog, "INFO", EventAlertDelivered, "alert delivered", map[string]any{
		"alert_id": alert.ID,
		"sink":     sink.Name(),
	})
}
