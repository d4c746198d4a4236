package email

import (
	"net/smtp"
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{name: "empty config", config: Config{}, expected: false},
		{name: "missing host", config: Config{Port: "587", From: "site@vsa.com.br"}, expected: false},
		{name: "missing port", config: Config{Host: "smtp.vsa.com.br", From: "site@vsa.com.br"}, expected: false},
		{name: "missing from", config: Config{Host: "smtp.vsa.com.br", Port: "587"}, expected: false},
		{name: "fully configured", config: Config{Host: "smtp.vsa.com.br", Port: "587", From: "site@vsa.com.br"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewService(tt.config).IsConfigured(); got != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.expected)
			}
		})
	}
}

type captured struct {
	addr string
	to   []string
	msg  string
}

func newCapturingService() (*Service, *captured) {
	svc := NewService(Config{Host: "smtp.vsa.com.br", Port: "587", From: "site@vsa.com.br", FromName: "VSA Tecnologia"})
	got := &captured{}
	svc.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		got.addr, got.to, got.msg = addr, to, string(msg)
		return nil
	}
	return svc, got
}

func TestSendContactNotificationEscapesInput(t *testing.T) {
	svc, got := newCapturingService()
	err := svc.SendContactNotification("comercial@vsa.com.br", ContactData{
		SiteName: "VSA Tecnologia",
		Name:     "Joana\r\nBcc: spam@example.com",
		Email:    "joana@example.com",
		Body:     "<script>alert(1)</script>",
		Service:  "Cloud",
	})
	if err != nil {
		t.Fatalf("SendContactNotification failed: %v", err)
	}
	if got.addr != "smtp.vsa.com.br:587" || len(got.to) != 1 {
		t.Fatalf("unexpected envelope: %+v", got)
	}
	if strings.Contains(got.msg, "\r\nBcc:") {
		t.Fatal("subject must not allow header injection")
	}
	if strings.Contains(got.msg, "<script>") {
		t.Fatal("message body must be HTML escaped")
	}
	if !strings.Contains(got.msg, "From: VSA Tecnologia <site@vsa.com.br>") {
		t.Fatalf("unexpected From header in %q", got.msg)
	}
}

func TestSendPasswordResetEmail(t *testing.T) {
	svc, got := newCapturingService()
	err := svc.SendPasswordResetEmail("ana@vsa.com.br", PasswordResetData{SiteName: "VSA", UserName: "Ana", ResetURL: "https://vsa.com.br/admin/reset?token=abc"})
	if err != nil {
		t.Fatalf("SendPasswordResetEmail failed: %v", err)
	}
	if !strings.Contains(got.msg, "https://vsa.com.br/admin/reset?token=abc") {
		t.Fatal("expected reset url in message")
	}
}

func TestSendWithoutConfigFails(t *testing.T) {
	if err := NewService(Config{}).SendHTMLEmail([]string{"a@b.c"}, "s", "<p>x</p>", "x"); err == nil {
		t.Fatal("expected error when email is not configured")
	}
}
