package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	gomail "github.com/wneessen/go-mail"

	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/platform/config"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	subjectBookingConfirmation = "Appointment confirmed"
	subjectBookingReminder     = "Appointment reminder"
)

type bookingEmailData struct {
	Title          string
	Heading        string
	ServiceType    string
	ProviderName   string
	Date           string
	Time           string
	CalendarLinked bool
}

// Sender delivers booking emails over SMTP.
type Sender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSender returns nil when email delivery is disabled.
func NewSender(cfg config.EmailConfig) *Sender {
	if !cfg.GetEmailEnabled() {
		return nil
	}
	return &Sender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *Sender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendBookingConfirmation mails the owner after an appointment is booked.
func (s *Sender) SendBookingConfirmation(ctx context.Context, toEmail string, booking domain.Booking) error {
	content, err := renderEmailTemplate("booking_confirmation.html", bookingEmailData{
		Title:          subjectBookingConfirmation,
		Heading:        "Your appointment is booked",
		ServiceType:    booking.ServiceType,
		ProviderName:   booking.ProviderName,
		Date:           booking.Slot.Date,
		Time:           booking.Slot.Time,
		CalendarLinked: booking.CalendarEventID != "",
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectBookingConfirmation, content)
}

// SendBookingReminder mails the owner shortly before the appointment.
func (s *Sender) SendBookingReminder(ctx context.Context, toEmail string, booking domain.Booking) error {
	content, err := renderEmailTemplate("booking_reminder.html", bookingEmailData{
		Title:        subjectBookingReminder,
		Heading:      "Upcoming appointment",
		ServiceType:  booking.ServiceType,
		ProviderName: booking.ProviderName,
		Date:         booking.Slot.Date,
		Time:         booking.Slot.Time,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectBookingReminder, content)
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
