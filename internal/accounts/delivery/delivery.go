// Package delivery sends one-time codes over email and SMS.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finlit/platform/internal/accounts/domain"
	"github.com/sony/gobreaker"
)

var (
	// ErrDeliveryFailed wraps every failure to hand a code to a provider.
	ErrDeliveryFailed = errors.New("delivery: failed")

	// ErrNoSender is returned when no sender is configured for a channel.
	ErrNoSender = errors.New("delivery: no sender for channel")
)

const DefaultTimeout = 10 * time.Second

// Message is a code to deliver to one address.
type Message struct {
	Channel domain.Channel
	To      string
	Purpose domain.Purpose
	Code    string
	TTL     time.Duration
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, text string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// BreakerConfig controls the per-channel circuit breakers.
type BreakerConfig struct {
	MaxFailures uint32        // consecutive failures before opening
	Interval    time.Duration // closed-state count reset period
	OpenFor     time.Duration // how long the breaker stays open
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, Interval: time.Minute, OpenFor: 30 * time.Second}
}

// Dispatcher routes messages to the sender for their channel. Each send has
// a timeout and runs behind that channel's circuit breaker.
type Dispatcher struct {
	Email   EmailSender
	SMS     SMSSender
	Timeout time.Duration
	Logger  *slog.Logger

	emailBreaker *gobreaker.CircuitBreaker
	smsBreaker   *gobreaker.CircuitBreaker
}

func NewDispatcher(email EmailSender, sms SMSSender, cfg BreakerConfig, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		Email:   email,
		SMS:     sms,
		Timeout: DefaultTimeout,
		Logger:  logger,
	}
	d.emailBreaker = d.newBreaker("delivery-email", cfg)
	d.smsBreaker = d.newBreaker("delivery-sms", cfg)
	return d
}

func (d *Dispatcher) newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.Logger.Warn("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

// Send delivers msg. Any failure, including an open breaker, is returned
// wrapped in ErrDeliveryFailed.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	var (
		cb   *gobreaker.CircuitBreaker
		send func(ctx context.Context) error
	)

	switch msg.Channel {
	case domain.ChannelEmail:
		if d.Email == nil {
			return fmt.Errorf("%w: %w: %s", ErrDeliveryFailed, ErrNoSender, msg.Channel)
		}
		subject, text := renderEmail(msg)
		cb = d.emailBreaker
		send = func(ctx context.Context) error { return d.Email.SendEmail(ctx, msg.To, subject, text) }
	case domain.ChannelMobile:
		if d.SMS == nil {
			return fmt.Errorf("%w: %w: %s", ErrDeliveryFailed, ErrNoSender, msg.Channel)
		}
		body := renderSMS(msg)
		cb = d.smsBreaker
		send = func(ctx context.Context) error { return d.SMS.SendSMS(ctx, msg.To, body) }
	default:
		return fmt.Errorf("%w: %w: %q", ErrDeliveryFailed, ErrNoSender, msg.Channel)
	}

	_, err := cb.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, d.Timeout)
		defer cancel()
		return nil, send(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

func purposeLabel(p domain.Purpose) string {
	switch p {
	case domain.PurposeLogin:
		return "sign-in"
	case domain.PurposePasswordReset:
		return "password reset"
	default:
		return "verification"
	}
}

func renderEmail(msg Message) (subject, text string) {
	label := purposeLabel(msg.Purpose)
	subject = fmt.Sprintf("Your %s code", label)
	text = fmt.Sprintf("Your %s code is %s. It expires in %d minutes. If you did not request it, ignore this email.",
		label, msg.Code, int(msg.TTL.Minutes()))
	return subject, text
}

func renderSMS(msg Message) string {
	return fmt.Sprintf("Your %s code is %s. It expires in %d minutes.",
		purposeLabel(msg.Purpose), msg.Code, int(msg.TTL.Minutes()))
}
