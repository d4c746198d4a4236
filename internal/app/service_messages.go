package app

import (
	"context"
	"io"
	"net/http"
	"net/mail"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/email"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/media"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/metrics"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/store"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/util"
)

const maxMessageLength = 5000

var messageStatuses = []string{store.MessageNew, store.MessageRead, store.MessageArchived}

type ContactInput struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Company   string  `json:"company"`
	Subject   string  `json:"subject"`
	Message   string  `json:"message"`
	ServiceID *string `json:"serviceId"`
}

// SubmitContact stores a contact form message and notifies the team. The
// message is saved even when the notification cannot be sent.
func (s *Service) SubmitContact(ctx context.Context, clientKey string, in ContactInput) (store.Message, error) {
	if s.limiter != nil && !s.limiter.Allow(clientKey) {
		metrics.RecordContactMessage("rate_limited")
		return store.Message{}, domainError(http.StatusTooManyRequests, "RATE_LIMITED", "Muitas mensagens enviadas, tente novamente em instantes", nil)
	}

	msg, err := s.prepareContact(ctx, in)
	if err != nil {
		metrics.RecordContactMessage("invalid")
		return store.Message{}, err
	}
	created, err := s.stores.Messages.Create(ctx, msg)
	if err != nil {
		metrics.RecordContactMessage("error")
		return store.Message{}, err
	}
	metrics.RecordContactMessage("accepted")
	s.notifyContact(ctx, created)
	return created, nil
}

func (s *Service) prepareContact(ctx context.Context, in ContactInput) (store.Message, error) {
	fields := fieldErrors{}
	msg := store.Message{
		ID:      util.NewID("msg"),
		Name:    requireText(fields, "name", in.Name, maxNameLength),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:   strings.TrimSpace(in.Phone),
		Company: strings.TrimSpace(in.Company),
		Subject: strings.TrimSpace(in.Subject),
		Body:    requireText(fields, "message", in.Message, maxMessageLength),
		Status:  store.MessageNew,
	}
	if addr, err := mail.ParseAddress(msg.Email); err != nil || addr.Address != msg.Email {
		fields.add("email", "e-mail inválido")
	}
	if in.ServiceID != nil && strings.TrimSpace(*in.ServiceID) != "" {
		serviceID := strings.TrimSpace(*in.ServiceID)
		if err := s.stores.Services.Ensure(ctx); err != nil {
			log.WithError(err).Warn("load services for contact form")
		}
		if item, ok := s.stores.Services.Find(serviceID); !ok || !item.IsPublic() {
			fields.add("serviceId", "serviço inexistente")
		}
		msg.ServiceID = &serviceID
	}
	return msg, fields.err()
}

func (s *Service) notifyContact(ctx context.Context, msg store.Message) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	settings := s.settingsOrDefault(ctx)
	to := strings.TrimSpace(s.cfg.NotifyEmail)
	if to == "" {
		to = settings.ContactEmail
	}
	if to == "" {
		return
	}
	serviceName := ""
	if msg.ServiceID != nil {
		if item, ok := s.stores.Services.Find(*msg.ServiceID); ok {
			serviceName = item.Title
		}
	}
	err := s.mailer.SendContactNotification(to, email.ContactData{
		SiteName: settings.SiteName,
		Name:     msg.Name,
		Email:    msg.Email,
		Phone:    msg.Phone,
		Company:  msg.Company,
		Subject:  msg.Subject,
		Body:     msg.Body,
		Service:  serviceName,
		AdminURL: strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/admin/messages",
	})
	if err != nil {
		log.WithError(err).WithField("message_id", msg.ID).Error("send contact notification")
	}
}

func (s *Service) SetMessageStatus(ctx context.Context, id, status string) (store.Message, error) {
	fields := fieldErrors{}
	status = oneOf(fields, "status", status, "", messageStatuses)
	if status == "" {
		fields.add("status", "obrigatório")
	}
	if err := fields.err(); err != nil {
		return store.Message{}, err
	}
	return s.stores.Messages.Mutate(ctx, id, func(current store.Message) (store.Message, error) {
		current.Status = status
		return current, nil
	})
}

func (s *Service) Upload(ctx context.Context, folder, filename string, r io.Reader) (media.Asset, error) {
	if s.media == nil {
		return media.Asset{}, unavailable("MEDIA_UNAVAILABLE", "Armazenamento de mídia não configurado")
	}
	return s.media.Upload(ctx, folder, filename, r)
}
