package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InviteUserMessage struct {
	Email      string   `json:"email" example:"pepe.rone@example.com" doc:"Invitee email."`
	Roles      []string `json:"roles" doc:"Roles granted when the invite is accepted."`
	ExpiresIn  int      `json:"expires_in" doc:"Invite lifetime in hours, 0 means no expiry."`
	OnResponse func(resp *InviteUserResponse)
}

func (e InviteUserMessage) Type() string { return "user.invite" }

type InviteUserResponse struct {
	Token   *ActionToken
	Success bool
}

type InviteUserHandler struct {
	tokens *ActionTokens
	mailer *TemplateMailer

	// InvitePath is the front end route the invite link points at
	InvitePath string
}

func NewInviteUserHandler(tokens *ActionTokens, mailer *TemplateMailer) *InviteUserHandler {
	return &InviteUserHandler{
		tokens:     tokens,
		mailer:     mailer,
		InvitePath: "/invites/accept",
	}
}

func (h *InviteUserHandler) Execute(ctx context.Context, event InviteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user invite",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InviteUserHandler) execute(ctx context.Context, event InviteUserMessage) error {
	resp := &InviteUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	token, err := h.tokens.Create(ctx, CreateActionTokenRequest{
		Type:      ActionInvite,
		Email:     event.Email,
		Roles:     event.Roles,
		ExpiresIn: event.ExpiresIn,
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create invite token")
	}

	resp.Token = token

	if h.mailer != nil {
		if err := h.mailer.SendActionToken(ctx, token, h.InvitePath); err != nil {
			return err
		}
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
