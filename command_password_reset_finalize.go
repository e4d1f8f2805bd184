package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token" doc:"Reset token delivered by email."`
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Password   string `json:"password" doc:"Replacement password."`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

type FinalizePasswordResetResponse struct {
	User    *User
	Success bool
}

type FinalizePasswordResetHandler struct {
	repo   RepositoryManager
	tokens *ActionTokens
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens *ActionTokens) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{repo: repo, tokens: tokens}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	resp := &FinalizePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	token, err := h.tokens.Validate(ctx, ValidateActionTokenRequest{
		Token:           event.Token,
		Email:           event.Email,
		RequiredActions: ActionResetPassword,
	})
	if err != nil {
		return err
	}

	if token.UserID == nil {
		return ErrInvalidActionToken
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

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, *token.UserID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reset password")
		}

		user, err = h.repo.Users().GetByID(ctx, *token.UserID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user after reset")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password reset transaction failed")
	}

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
