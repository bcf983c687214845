package email

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"

	"github.com/example/ec-checkout/internal/domain/order"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("email: no recipient")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host   string
	port   string
	from   string
	logger *zap.Logger
	send   sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string, logger *zap.Logger) *Service {
	return &Service{
		host:   host,
		port:   port,
		from:   from,
		logger: logger,
		send:   smtp.SendMail,
	}
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(ctx context.Context, c order.Confirmation) error {
	if c.Email == "" {
		return ErrNoRecipient
	}
	body, err := BuildOrderConfirmationBody(c)
	if err != nil {
		return fmt.Errorf("render confirmation: %w", err)
	}

	subject := "Order Confirmation - #" + c.OrderID
	if err := s.deliver(ctx, c.Email, subject, body); err != nil {
		return err
	}

	s.logger.Info("order confirmation sent",
		zap.String("order_id", c.OrderID),
		zap.String("to", c.Email))
	return nil
}

// deliver runs the blocking SMTP exchange but gives up waiting once ctx ends.
func (s *Service) deliver(ctx context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, mime.QEncoding.Encode("utf-8", subject), body)
	addr := net.JoinHostPort(s.host, s.port)

	done := make(chan error, 1)
	go func() {
		done <- s.send(addr, nil, s.from, []string{to}, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
