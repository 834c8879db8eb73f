// Package notifications sends transactional email. Delivery is
// fire-and-forget: a failed send is logged and never fails the operation
// that triggered it.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anshgupta/storekart-backend/pkg/db/models"
	pkgerrors "github.com/anshgupta/storekart-backend/pkg/errors"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/google/uuid"
)

const sendTimeout = 30 * time.Second

type userFinder interface {
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// ServiceParams groups dependencies for the notification dispatcher.
type ServiceParams struct {
	Sender EmailSender
	Users  userFinder
	Logger *logger.Logger
}

// Service dispatches transactional email off the request path.
type Service interface {
	NotifyOrderConfirmed(ctx context.Context, order *models.Order)
	Wait()
}

type service struct {
	sender EmailSender
	users  userFinder
	logg   *logger.Logger
	wg     sync.WaitGroup
}

// NewService builds the dispatcher with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email sender is required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user lookup is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		sender: params.Sender,
		users:  params.Users,
		logg:   params.Logger,
	}, nil
}

// NotifyOrderConfirmed emails the buyer their order confirmation. The send
// runs on its own goroutine with a detached context so a slow SMTP server
// never holds up checkout.
func (s *service) NotifyOrderConfirmed(ctx context.Context, order *models.Order) {
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	snapshot := *order
	items := make([]models.OrderItem, len(order.Items))
	copy(items, order.Items)
	snapshot.Items = items

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
		defer cancel()

		user, err := s.users.FindUser(sendCtx, snapshot.UserID)
		if err != nil {
			s.logg.Error(sendCtx, "confirmation email skipped, user lookup failed", err)
			return
		}

		subject, text, html := confirmationEmail(user, &snapshot)
		if err := s.sender.Send(sendCtx, user.Email, subject, text, html); err != nil {
			s.logg.Error(sendCtx, "confirmation email send failed", err)
			return
		}
		s.logg.Info(sendCtx, "confirmation email sent")
	}()
}

// Wait blocks until all in-flight sends finish. Called on shutdown.
func (s *service) Wait() {
	s.wg.Wait()
}

func confirmationEmail(user *models.User, order *models.Order) (subject, text, html string) {
	shortID := strings.Split(order.ID.String(), "-")[0]
	subject = "Your StoreKart order " + shortID + " is confirmed"

	var tb strings.Builder
	fmt.Fprintf(&tb, "Hi %s,\n\nYour order %s is confirmed.\n\n", user.Name, shortID)
	for _, item := range order.Items {
		fmt.Fprintf(&tb, "  %dx %s  ₹%s\n", item.Quantity, item.Name, item.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&tb, "\nTotal: ₹%s (%s)\n", order.TotalAmount.StringFixed(2), order.PaymentMethod)
	fmt.Fprintf(&tb, "Shipping to: %s, %s, %s %s\n", order.ShippingAddress.Line1, order.ShippingAddress.City, order.ShippingAddress.State, order.ShippingAddress.PostalCode)
	text = tb.String()

	var hb strings.Builder
	fmt.Fprintf(&hb, "<p>Hi %s,</p><p>Your order <strong>%s</strong> is confirmed.</p><ul>", user.Name, shortID)
	for _, item := range order.Items {
		fmt.Fprintf(&hb, "<li>%dx %s &mdash; ₹%s</li>", item.Quantity, item.Name, item.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&hb, "</ul><p>Total: <strong>₹%s</strong> (%s)</p>", order.TotalAmount.StringFixed(2), order.PaymentMethod)
	html = hb.String()

	return subject, text, html
}
