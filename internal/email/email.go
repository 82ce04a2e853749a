package email

import (
	"context"
	"fmt"
	"log"

	"github.com/freshfield/cleanbooking/internal/kafka"
	"github.com/freshfield/cleanbooking/internal/pricing"
)

// Sender delivers booking notifications. Delivery is a log-backed stub; the
// subject/body composition is what the worker exercises.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	subject, body := Compose(event)
	log.Printf("email to %s: %s | %s", event.Email, subject, body)
	return nil
}

// Compose renders the notification for one booking event.
func Compose(event kafka.BookingEvent) (subject, body string) {
	total := pricing.FormatUSD(event.TotalCents)
	when := event.SlotStart.Format("Mon, 2 Jan 2006 at 15:04")

	switch event.Type {
	case "booking_created":
		subject = "Your cleaning is almost booked"
		body = fmt.Sprintf("We are holding %s for you (%s). Confirm before %s to lock it in.",
			when, total, event.ExpiresAt.Format("15:04"))
	case "booking_confirmed":
		subject = "Your cleaning is confirmed"
		body = fmt.Sprintf("See you on %s. Total due: %s.", when, total)
	case "booking_cancelled":
		subject = "Your cleaning was cancelled"
		body = fmt.Sprintf("The booking for %s has been cancelled.", when)
	case "booking_expired":
		subject = "Your cleaning hold expired"
		body = fmt.Sprintf("The hold for %s was not confirmed in time. You can book again anytime.", when)
	default:
		subject = "Booking update"
		body = fmt.Sprintf("Status of your booking for %s: %s.", when, event.Status)
	}
	return subject, body
}
