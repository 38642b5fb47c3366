// AngelaMos | 2026
// sender.go

package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/bbigmic/dziennik-pracy/internal/config"
	"github.com/bbigmic/dziennik-pracy/internal/metrics"
)

type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// DeliveryError is a failed send. StatusCode is zero when no response was
// received (timeouts, DNS, refused connections).
type DeliveryError struct {
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("push delivery failed: %v", e.Err)
	}
	return fmt.Sprintf("push delivery failed with status %d: %v", e.StatusCode, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Permanent reports whether the push service says the subscription is gone
// or unusable, so retrying it can never succeed.
func (e *DeliveryError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusGone:
		return true
	default:
		return false
	}
}

func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent()
}

type Sender struct {
	publicKey  string
	privateKey string
	subject    string
	ttl        int
	timeout    time.Duration
	httpClient *http.Client
}

// NewSender builds a VAPID sender. webpush-go adds the mailto: scheme itself,
// so a configured one is stripped.
func NewSender(cfg config.PushConfig) *Sender {
	return &Sender{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subject:    strings.TrimPrefix(cfg.Subject, "mailto:"),
		ttl:        cfg.TTL,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *Sender) PublicKey() string {
	return s.publicKey
}

func (s *Sender) Send(
	ctx context.Context,
	sub Subscription,
	payload []byte,
	urgency Urgency,
) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
		Urgency:         webpush.Urgency(urgency),
	})
	if err != nil {
		metrics.RecordUpstreamCall("webpush", "send", err, time.Since(start))
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // body is drained below

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		deliveryErr := &DeliveryError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("push service responded %q", string(body)),
		}
		metrics.RecordUpstreamCall("webpush", "send", deliveryErr, time.Since(start))
		return deliveryErr
	}

	metrics.RecordUpstreamCall("webpush", "send", nil, time.Since(start))
	return nil
}
