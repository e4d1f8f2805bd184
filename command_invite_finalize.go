package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

type FinalizeInviteMessage struct {
	Token      string `json:"token" doc:"Invite token delivered by email."`
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Invitee email."`
	Username   string `json:"username" doc:"Optional username, derived from email when empty."`
	Phone      string `json:"phone" doc:"Optional phone number, stored in E.164."`
	Password   string `json:"password" doc:"Password for the new account."`
	Region     string `json:"region" doc:"Default region for phone parsing, e.g. US."`
	OnResponse func(resp *FinalizeInviteResponse)
}

func (e FinalizeInviteMessage) Type() string { return "user.invite.finalize" }

type FinalizeInviteResponse struct {
	User    *User
	Success bool
}

type FinalizeInviteHandler struct {
	repo   RepositoryManager
	tokens *ActionTokens
}

func NewFinalizeInviteHandler(repo RepositoryManager, tokens *ActionTokens) *FinalizeInviteHandler {
	return &FinalizeInviteHandler{repo: repo, tokens: tokens}
}

func (h *FinalizeInviteHandler) Execute(ctx context.Context, event FinalizeInviteMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during invite finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeInviteHandler) execute(ctx context.Context, event FinalizeInviteMessage) error {
	resp := &FinalizeInviteResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	token, err := h.tokens.Validate(ctx, ValidateActionTokenRequest{
		Token:           event.Token,
		Email:           event.Email,
		RequiredActions: ActionInvite,
	})
	if err != nil {
		return err
	}

	phone, err := normalizePhone(event.Phone, event.Region)
	if err != nil {
		return err
	}

	user := &User{}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = token.Email
		user.Phone = phone
		user.Username = event.Username
		// the invite reached this address
		user.EmailValidated = true
		if id, err := hashid.NewUUID(token.Email); err == nil {
			user.ID = id
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if len(token.Roles) > 0 {
			roles, err := h.repo.Roles().FindByNames(ctx, token.Roles)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve invite roles")
			}
			if err := h.repo.Users().AssignRolesTx(ctx, tx, user, roles); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign invite roles")
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invite finalization transaction failed")
	}

	// the invite is spent, tolerate a concurrent revoke
	if err := h.tokens.Revoke(ctx, token.Token); err != nil && !goerrors.IsNotFound(err) {
		return err
	}

	resp.User = user
	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// normalizePhone parses a raw phone number and formats it as E.164.
// Empty input is passed through, region defaults to US.
func normalizePhone(raw, region string) (string, error) {
	if raw == "" {
		return "", nil
	}

	if region == "" {
		region = "US"
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number").
			WithMetadata(map[string]any{
				"phone":  raw,
				"region": region,
			})
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithMetadata(map[string]any{
				"phone":  raw,
				"region": region,
			})
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
