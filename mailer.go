package identity

import (
	"bytes"
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
)

// Template names bundled under data/mail.
const (
	MailTemplateInvite        = "invite"
	MailTemplatePasswordReset = "password_reset"
	MailTemplateActionToken   = "action_token"
)

// MailRenderer renders a named mail template against a binding map
type MailRenderer interface {
	Render(name string, data map[string]any) (string, error)
}

// TemplateMailer renders action token emails and hands them to a Mailer
// for delivery. Templates use django syntax and are loaded once at
// construction time.
type TemplateMailer struct {
	engine *django.Engine
	mailer Mailer
	logger Logger

	// BaseURL is prepended to token links, e.g. https://app.example.com
	BaseURL string
}

// NewTemplateMailer loads the bundled templates and wraps the given
// delivery Mailer
func NewTemplateMailer(mailer Mailer) (*TemplateMailer, error) {
	sub, err := fs.Sub(mailFS, "data/mail")
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open mail templates")
	}
	return NewTemplateMailerFS(mailer, sub)
}

// NewTemplateMailerFS is like NewTemplateMailer but loads templates from
// the given filesystem, letting callers ship their own designs
func NewTemplateMailerFS(mailer Mailer, templates fs.FS) (*TemplateMailer, error) {
	engine := django.NewFileSystem(http.FS(templates), ".html")
	if err := engine.Load(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load mail templates")
	}

	return &TemplateMailer{
		engine: engine,
		mailer: mailer,
		logger: defLogger{},
	}, nil
}

// WithLogger replaces the default logger
func (m *TemplateMailer) WithLogger(logger Logger) *TemplateMailer {
	m.logger = logger
	return m
}

// Render executes a named template and returns the rendered body
func (m *TemplateMailer) Render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.engine.Render(&buf, name, data); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to render mail template").
			WithMetadata(map[string]any{
				"template": name,
			})
	}
	return buf.String(), nil
}

// SendActionToken renders the template matching the token's actions and
// delivers it to the token's email. The link is BaseURL plus the given
// path with the token appended as a query parameter.
func (m *TemplateMailer) SendActionToken(ctx context.Context, token *ActionToken, path string) error {
	if token == nil {
		return errors.New("action token is required", errors.CategoryBadInput)
	}

	name, subject := templateForActions(token.Type)

	data := map[string]any{
		"email":   token.Email,
		"link":    m.BaseURL + path + "?token=" + token.Token,
		"actions": actionLabels(token.Type),
	}

	if token.ExpiresAt != nil {
		data["expires_at"] = token.ExpiresAt.Format(time.RFC1123)
	}

	body, err := m.Render(name, data)
	if err != nil {
		return err
	}

	if err := m.mailer.Send(ctx, token.Email, subject, body); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to deliver mail").
			WithMetadata(map[string]any{
				"template": name,
			})
	}

	m.logger.Info("mail sent template=%s to=%s", name, token.Email)

	return nil
}

func templateForActions(actions ActionType) (name, subject string) {
	switch {
	case actions.Has(ActionInvite):
		return MailTemplateInvite, "You have been invited"
	case actions.Has(ActionResetPassword):
		return MailTemplatePasswordReset, "Reset your password"
	default:
		return MailTemplateActionToken, "Action required"
	}
}

// actionLabels returns human readable names in canonical order
func actionLabels(actions ActionType) []string {
	out := []string{}
	for _, a := range actions.Actions() {
		out = append(out, a.String())
	}
	return out
}
