package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strconv"

	"gopkg.in/gomail.v2"

	"project-tracker-api/internal/models"
)

var emailTemplate = template.Must(template.New("project").Parse(`<h2>New Project Details</h2>
<p><strong>Project Name:</strong> {{.ProjectName}}</p>
<p><strong>Project Type:</strong> {{.ProjectType}}</p>
{{- if .Category}}
<p><strong>Category:</strong> {{.Category}}</p>
{{- end}}
{{- if .Hours}}
<p><strong>Hours Worked:</strong> {{.Hours}}</p>
{{- end}}
<p><strong>Date Received:</strong> {{.DateReceived}}</p>
<p><strong>Contact Person:</strong> {{.ContactPerson}}</p>
<p><strong>End Client:</strong> {{.EndClientName}}</p>
{{- if .Notes}}
<p><strong>Notes:</strong> {{.Notes}}</p>
{{- end}}
`))

type emailView struct {
	ProjectName   string
	ProjectType   string
	Category      string
	Hours         string
	DateReceived  string
	ContactPerson string
	EndClientName string
	Notes         string
}

// RenderEmail returns the subject and HTML body for p. Optional fields are
// omitted when unset.
func RenderEmail(p models.Project) (string, string, error) {
	v := emailView{
		ProjectName:   p.ProjectName,
		ProjectType:   string(p.ProjectType),
		DateReceived:  p.DateReceived.String(),
		ContactPerson: p.ContactPerson,
		EndClientName: p.EndClientName,
	}
	if p.Category != nil {
		v.Category = string(*p.Category)
	}
	if p.HoursWorked != nil && *p.HoursWorked > 0 {
		v.Hours = strconv.FormatFloat(*p.HoursWorked, 'f', -1, 64)
	}
	if p.Notes != nil {
		v.Notes = *p.Notes
	}

	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, v); err != nil {
		return "", "", fmt.Errorf("render project email: %w", err)
	}
	return "New Project: " + p.ProjectName, body.String(), nil
}

// SMTPConfig describes the mail relay and addresses.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Secure   bool
	From     string
	To       string
}

// EmailSender mails each new project to the management address.
type EmailSender struct {
	from, to string
	send     func(...*gomail.Message) error
}

func NewEmailSender(cfg SMTPConfig) *EmailSender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.Secure
	return &EmailSender{from: cfg.From, to: cfg.To, send: dialer.DialAndSend}
}

func (s *EmailSender) Name() string { return "smtp" }

func (s *EmailSender) Send(ctx context.Context, p models.Project) error {
	msg, err := s.message(p)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(msg); err != nil {
		return fmt.Errorf("send project email: %w", err)
	}
	return nil
}

func (s *EmailSender) message(p models.Project) (*gomail.Message, error) {
	subject, body, err := RenderEmail(p)
	if err != nil {
		return nil, err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m, nil
}
