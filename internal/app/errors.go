package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/auth"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/authpw"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/content"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/export"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/gitrepo"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/media"
	"github.com/VSA-Tecnologia/vsa-tech-portal-nexus-sub000/internal/rbac"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// fieldErrors collects per-field validation messages for one request.
type fieldErrors map[string]string

func (f fieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Dados inválidos", map[string]any{"fields": map[string]string(f)})
}

func invalidField(field, message string) error {
	return fieldErrors{field: message}.err()
}

func unauthorized() *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sessão inválida ou expirada", map[string]any{"redirect": rbac.LoginPath})
}

func forbidden(required rbac.Role) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Permissão insuficiente", map[string]any{
		"redirect": rbac.DefaultPath,
		"required": required,
	})
}

func unavailable(code, message string) *DomainError {
	return domainError(http.StatusServiceUnavailable, code, message, nil)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, content.ErrNotFound),
		errors.Is(err, gitrepo.ErrNoHistory),
		errors.Is(err, gitrepo.ErrUnknownRevision):
		return http.StatusNotFound, "NOT_FOUND", "Não encontrado", nil
	case errors.Is(err, content.ErrConflict):
		return http.StatusConflict, "CONFLICT", "Registro duplicado", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		e := unauthorized()
		return e.Status, e.Code, e.Message, e.Details
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "E-mail ou senha inválidos", nil
	case errors.Is(err, authpw.ErrDeactivated):
		return http.StatusForbidden, "ACCOUNT_DEACTIVATED", "Conta desativada", map[string]any{"redirect": rbac.LoginPath}
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "CONFLICT", "E-mail já cadastrado", nil
	case errors.Is(err, authpw.ErrInvalidEmail):
		return validationDetails("email", err.Error())
	case errors.Is(err, authpw.ErrWeakPassword):
		return validationDetails("password", err.Error())
	case errors.Is(err, authpw.ErrInvalidRole):
		return validationDetails("role", err.Error())
	case errors.Is(err, authpw.ErrInvalidResetToken):
		return http.StatusBadRequest, "RESET_FAILED", err.Error(), nil
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Arquivo muito grande", nil
	case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrEmpty):
		return validationDetails("file", err.Error())
	case errors.Is(err, media.ErrInvalidFolder):
		return validationDetails("folder", err.Error())
	case errors.Is(err, gitrepo.ErrInvalidPageID):
		return validationDetails("id", err.Error())
	case errors.Is(err, export.ErrNothingToExport):
		return http.StatusNotFound, "NOTHING_TO_EXPORT", "Nada para exportar", nil
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Exportação em PDF indisponível", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Erro no servidor", nil
}

func validationDetails(field, message string) (int, string, string, any) {
	var domainErr *DomainError
	errors.As(invalidField(field, message), &domainErr)
	return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
}
