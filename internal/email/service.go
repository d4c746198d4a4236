// Package email sends transactional mail over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"
)

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// headerSafe strips line breaks so user input cannot add headers.
func headerSafe(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}

func (s *Service) SendHTMLEmail(to []string, subject, htmlBody, textBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}
	if len(to) == 0 {
		return fmt.Errorf("email has no recipients")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", headerSafe(s.config.FromName), s.config.From)
	}
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		recipients = append(recipients, headerSafe(addr))
	}

	boundary := fmt.Sprintf("portal-%d", time.Now().UnixNano())
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerSafe(subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, recipients, msg.Bytes())
}

type ContactData struct {
	SiteName string
	Name     string
	Email    string
	Phone    string
	Company  string
	Subject  string
	Body     string
	Service  string
	AdminURL string
}

type PasswordResetData struct {
	SiteName string
	UserName string
	ResetURL string
}

// SendContactNotification tells the team a contact form message arrived.
func (s *Service) SendContactNotification(to string, data ContactData) error {
	html, err := renderTemplate(contactTemplate, data)
	if err != nil {
		return fmt.Errorf("render contact template: %w", err)
	}
	subject := "Nova mensagem de contato: " + data.Name
	if data.Subject != "" {
		subject += " - " + data.Subject
	}
	text := fmt.Sprintf("%s <%s>\n\n%s", data.Name, data.Email, data.Body)
	return s.SendHTMLEmail([]string{to}, subject, html, text)
}

func (s *Service) SendPasswordResetEmail(to string, data PasswordResetData) error {
	html, err := renderTemplate(passwordResetTemplate, data)
	if err != nil {
		return fmt.Errorf("render password reset template: %w", err)
	}
	text := "Use o link abaixo para redefinir sua senha:\n" + data.ResetURL
	return s.SendHTMLEmail([]string{to}, "Redefinição de senha - "+data.SiteName, html, text)
}

func renderTemplate(tmpl string, data any) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const contactTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Nova mensagem recebida pelo site {{.SiteName}}</h2>
  <p><strong>Nome:</strong> {{.Name}}<br>
  <strong>E-mail:</strong> {{.Email}}{{if .Phone}}<br>
  <strong>Telefone:</strong> {{.Phone}}{{end}}{{if .Company}}<br>
  <strong>Empresa:</strong> {{.Company}}{{end}}{{if .Service}}<br>
  <strong>Serviço de interesse:</strong> {{.Service}}{{end}}</p>
  {{if .Subject}}<p><strong>Assunto:</strong> {{.Subject}}</p>{{end}}
  <blockquote style="border-left: 3px solid #2563eb; padding-left: 12px;">{{.Body}}</blockquote>
  {{if .AdminURL}}<p><a href="{{.AdminURL}}">Abrir no painel</a></p>{{end}}
</body>
</html>`

const passwordResetTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>Redefinição de senha</h2>
  <p>Olá {{.UserName}},</p>
  <p>Recebemos um pedido para redefinir sua senha no painel {{.SiteName}}. O link expira em uma hora.</p>
  <p><a href="{{.ResetURL}}" style="background: #2563eb; color: #fff; padding: 10px 18px; text-decoration: none; border-radius: 4px;">Redefinir senha</a></p>
  <p>Se você não pediu a redefinição, ignore este e-mail.</p>
</body>
</html>`
