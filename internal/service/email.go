package service

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"stakelend-backend/internal/domain"
)

type emailService struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewEmailService(host string, port int, username, password, from string) EmailService {
	return &emailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *emailService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email via gomail: %w", err)
	}
	return nil
}

func (s *emailService) SendRentalStarted(ctx context.Context, email, name string, ref domain.AssetRef, expiry time.Time) error {
	body := fmt.Sprintf("Hello %s,\n\nYour asset %s has been rented out. The rental runs until %s.\n\nBest regards,\nThe Stakelend Team",
		name, ref, expiry.Format(time.RFC1123))
	return s.send(email, fmt.Sprintf("Asset %s rented", ref), body)
}

func (s *emailService) SendRentalExtended(ctx context.Context, email, name string, ref domain.AssetRef, expiry time.Time) error {
	body := fmt.Sprintf("Hello %s,\n\nThe rental of your asset %s has been extended. It now runs until %s.\n\nBest regards,\nThe Stakelend Team",
		name, ref, expiry.Format(time.RFC1123))
	return s.send(email, fmt.Sprintf("Rental of %s extended", ref), body)
}

func (s *emailService) SendAssetAvailable(ctx context.Context, email, name string, ref domain.AssetRef) error {
	body := fmt.Sprintf("Hello %s,\n\nThe rental on your asset %s has ended. The asset is available for new rentals.\n\nBest regards,\nThe Stakelend Team",
		name, ref)
	return s.send(email, fmt.Sprintf("Asset %s available", ref), body)
}

func (s *emailService) SendPayoutConfirmation(ctx context.Context, email, name string, amountCents int64) error {
	body := fmt.Sprintf("Hello %s,\n\nA payout of $%d.%02d has been sent to your account.\n\nBest regards,\nThe Stakelend Team",
		name, amountCents/100, amountCents%100)
	return s.send(email, "Payout confirmation", body)
}
