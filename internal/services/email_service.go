package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/bspcp/membership-backend/internal/config"
	"github.com/sirupsen/logrus"
)

// Email template ids
const (
	TemplateApplicationReceived = "application_received"
	TemplateApplicationApproved = "application_approved"
	TemplateApplicationRejected = "application_rejected"
	TemplatePaymentRequested    = "payment_requested"
	TemplatePaymentVerified     = "payment_verified"
	TemplatePaymentRejected     = "payment_rejected"
	TemplateBookingConfirmed    = "booking_confirmed"
	TemplateBookingCancelled    = "booking_cancelled"
)

// EmailService renders templated notifications and delivers them over an
// SMTP relay. Sending is best-effort: callers log failures but never roll
// back the surrounding business transaction.
type EmailService struct {
	cfg       config.SMTPConfig
	logger    *logrus.Logger
	templates map[string]*emailTemplate
}

type emailTemplate struct {
	subject string
	body    *template.Template
}

// NewEmailService creates an email service with the built-in template registry
func NewEmailService(cfg config.SMTPConfig, logger *logrus.Logger) (*EmailService, error) {
	svc := &EmailService{
		cfg:       cfg,
		logger:    logger,
		templates: map[string]*emailTemplate{},
	}

	for id, def := range templateDefs {
		parsed, err := template.New(id).Parse(def.body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", id, err)
		}
		svc.templates[id] = &emailTemplate{subject: def.subject, body: parsed}
	}

	return svc, nil
}

// Send renders the template and delivers it. In dev mode the rendered email
// is logged instead of sent.
func (s *EmailService) Send(recipient, templateID string, data map[string]interface{}) error {
	tmpl, ok := s.templates[templateID]
	if !ok {
		return fmt.Errorf("unknown email template: %s", templateID)
	}

	var buf bytes.Buffer
	if err := tmpl.body.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render email template %s: %w", templateID, err)
	}

	if s.cfg.Mode != "production" {
		s.logger.WithFields(logrus.Fields{
			"to":       recipient,
			"template": templateID,
			"subject":  tmpl.subject,
		}).Info("Email (dev mode, not sent)")
		return nil
	}

	return s.deliver(recipient, tmpl.subject, buf.String())
}

// deliver pushes one message through the relay using implicit TLS
func (s *EmailService) deliver(to, subject, body string) error {
	from := s.cfg.From
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", from) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	serverAddr := s.cfg.Host + ":" + s.cfg.Port

	tlsConfig := &tls.Config{
		ServerName: s.cfg.Host,
	}

	conn, err := tls.Dial("tcp", serverAddr, tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to dial smtp relay: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth failed: %w", err)
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return nil
}

// SendAsync fires a notification without blocking the caller; failures are
// logged and never propagated.
func (s *EmailService) SendAsync(recipient, templateID string, data map[string]interface{}) {
	go func() {
		if err := s.Send(recipient, templateID, data); err != nil {
			s.logger.WithFields(logrus.Fields{
				"to":       recipient,
				"template": templateID,
			}).WithError(err).Error("Failed to send email")
		}
	}()
}

// templateDefs is the built-in template registry keyed by template id
var templateDefs = map[string]struct {
	subject string
	body    string
}{
	TemplateApplicationReceived: {
		subject: "BSPCP — Application Received",
		body: `<p>Dear {{.Name}},</p>
<p>Thank you for applying for BSPCP membership. Your application is under review
and we will contact you once a decision has been made.</p>
<p>Botswana Society of Professional Counsellors and Psychotherapists</p>`,
	},
	TemplateApplicationApproved: {
		subject: "BSPCP — Application Approved",
		body: `<p>Dear {{.Name}},</p>
<p>Congratulations, your membership application has been approved.</p>
<p>Your membership number is <strong>{{.MembershipNumber}}</strong> and your
username is <strong>{{.Username}}</strong>.</p>
<p>Please set your password within 24 hours using the link below:</p>
<p><a href="{{.SetupLink}}">{{.SetupLink}}</a></p>
<p>Botswana Society of Professional Counsellors and Psychotherapists</p>`,
	},
	TemplateApplicationRejected: {
		subject: "BSPCP — Application Decision",
		body: `<p>Dear {{.Name}},</p>
<p>We regret to inform you that your membership application was not successful.</p>
{{if .Comment}}<p>Reviewer notes: {{.Comment}}</p>{{end}}
<p>Botswana Society of Professional Counsellors and Psychotherapists</p>`,
	},
	TemplatePaymentRequested: {
		subject: "BSPCP — Membership Payment Requested",
		body: `<p>Dear {{.Name}},</p>
<p>Please upload proof of payment for your membership fees using the link below.
The link is valid for 31 days.</p>
<p><a href="{{.UploadLink}}">{{.UploadLink}}</a></p>
<p>Botswana Society of Professional Counsellors and Psychotherapists</p>`,
	},
	TemplatePaymentVerified: {
		subject: "BSPCP — Payment Verified",
		body: `<p>Dear {{.Name}},</p>
<p>Your payment has been verified. Your membership is now in good standing.</p>
<p>Botswana Society of Professional Counsellors and Psychotherapists</p>`,
	},
	TemplatePaymentRejected: {
		subject: "BSPCP — Payment Proof Rejected",
		body: `<p>Dear {{.Name}},</p>
<p>Your payment proof could not be verified.</p>
{{if .Notes}}<p>Reviewer notes: {{.Notes}}</p>{{end}}
<p>Please upload a new proof of payment using the link below:</p>
<p><a href="{{.UploadLink}}">{{.UploadLink}}</a></p>
<p>Botswana Society of Professional Counsellors and Psychotherapists</p>`,
	},
	TemplateBookingConfirmed: {
		subject: "BSPCP — Booking Confirmed",
		body: `<p>Dear {{.ClientName}},</p>
<p>Your session with {{.CounsellorName}} on {{.SessionAt}} has been confirmed.</p>
<p>Botswana Society of Professional Counsellors and Psychotherapists</p>`,
	},
	TemplateBookingCancelled: {
		subject: "BSPCP — Booking Cancelled",
		body: `<p>Dear {{.ClientName}},</p>
<p>Your session with {{.CounsellorName}} on {{.SessionAt}} has been cancelled.</p>
<p>Botswana Society of Professional Counsellors and Psychotherapists</p>`,
	},
}
