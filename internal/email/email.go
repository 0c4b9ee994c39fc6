package email

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"evento/internal/config"
)

// Service handles email operations
type Service struct {
	config    *config.EmailConfig
	publicURL string
}

// NewService creates a new email service. publicURL is the frontend base
// used in links.
func NewService(cfg *config.EmailConfig, publicURL string) *Service {
	return &Service{
		config:    cfg,
		publicURL: publicURL,
	}
}

const layout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        {{template "content" .}}
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>`

var (
	assignmentTemplate = template.Must(template.Must(template.New("layout").Parse(layout)).New("content").Parse(`
        <h2 style="color: #4a90e2;">New review assignments</h2>
        <p>Hello {{.Name}},</p>
        <p>You have been assigned {{len .Titles}} submission(s) of <strong>{{.Event}}</strong>:</p>
        <ul>{{range .Titles}}
            <li>{{.}}</li>{{end}}
        </ul>
        <p>Please submit your reviews by <strong>{{.Deadline}}</strong>.</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.Link}}" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open my reviews</a>
        </div>`))

	reminderTemplate = template.Must(template.Must(template.New("layout").Parse(layout)).New("content").Parse(`
        <h2 style="color: #e67e22;">Reviews due soon</h2>
        <p>Hello {{.Name}},</p>
        <p>The following reviews are still open:</p>
        <table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
            <thead>
                <tr style="background-color: #f5f5f5; border-bottom: 2px solid #ddd;">
                    <th style="padding: 8px; text-align: left;">Event</th>
                    <th style="padding: 8px; text-align: left;">Submission</th>
                    <th style="padding: 8px; text-align: left;">Deadline</th>
                </tr>
            </thead>
            <tbody>{{range .Items}}
                <tr style="border-bottom: 1px solid #eee;">
                    <td style="padding: 8px;">{{.Event}}</td>
                    <td style="padding: 8px;">{{.Title}}</td>
                    <td style="padding: 8px;">{{.Deadline.Format "2006-01-02 15:04"}}</td>
                </tr>{{end}}
            </tbody>
        </table>
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.Link}}" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open my reviews</a>
        </div>`))
)

// ReminderItem is one open review listed in a reminder
type ReminderItem struct {
	Event    string
	Title    string
	Deadline time.Time
}

// SendReviewAssignment tells a reviewer about newly assigned submissions
func (s *Service) SendReviewAssignment(to, reviewerName, eventName string, titles []string, deadline time.Time) error {
	subject, body, err := s.renderAssignment(reviewerName, eventName, titles, deadline)
	if err != nil {
		return err
	}
	return s.sendEmail(to, subject, body)
}

func (s *Service) renderAssignment(reviewerName, eventName string, titles []string, deadline time.Time) (string, string, error) {
	var buf bytes.Buffer
	err := assignmentTemplate.ExecuteTemplate(&buf, "layout", map[string]any{
		"Title":    "Review assignments",
		"Name":     reviewerName,
		"Event":    eventName,
		"Titles":   titles,
		"Deadline": deadline.Format("2006-01-02"),
		"Link":     s.publicURL + "/reviews",
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to render assignment email: %w", err)
	}
	return fmt.Sprintf("New review assignments - %s", eventName), buf.String(), nil
}

// SendReviewReminder lists a reviewer's open reviews that are due soon
func (s *Service) SendReviewReminder(to, reviewerName string, items []ReminderItem) error {
	if len(items) == 0 {
		return nil
	}
	subject, body, err := s.renderReminder(reviewerName, items)
	if err != nil {
		return err
	}
	return s.sendEmail(to, subject, body)
}

func (s *Service) renderReminder(reviewerName string, items []ReminderItem) (string, string, error) {
	var buf bytes.Buffer
	err := reminderTemplate.ExecuteTemplate(&buf, "layout", map[string]any{
		"Title": "Reviews due soon",
		"Name":  reviewerName,
		"Items": items,
		"Link":  s.publicURL + "/reviews",
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to render reminder email: %w", err)
	}
	return fmt.Sprintf("Reminder: %d review(s) due soon", len(items)), buf.String(), nil
}

// sendEmail sends an email using SMTP
func (s *Service) sendEmail(to, subject, body string) error {
	if !s.config.Enabled {
		slog.Debug("Email disabled, not sending", "to", to, "subject", subject)
		return nil
	}

	var message bytes.Buffer
	message.WriteString(fmt.Sprintf("From: %s\r\n", s.config.SMTPFrom))
	message.WriteString(fmt.Sprintf("To: %s\r\n", to))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		slog.Error("Failed to connect to SMTP server",
			"address", addr,
			"error", err,
		)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func(conn net.Conn) {
		if err := conn.Close(); err != nil {
			slog.Debug("Failed to close SMTP connection", "error", err)
		}
	}(conn)

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		if err := client.Close(); err != nil {
			slog.Debug("Failed to close SMTP client", "error", err)
		}
	}(client)

	// Mailpit and similar dev servers run without authentication
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		_ = client.Auth(auth)
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}
	if _, err := wc.Write(message.Bytes()); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := closeData(wc); err != nil {
		return err
	}

	slog.Info("Email sent successfully", "to", to, "subject", subject)
	return nil
}

func closeData(wc io.WriteCloser) error {
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return nil
}
