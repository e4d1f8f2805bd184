package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type actionTokens struct {
	db *bun.DB
}

var _ ActionTokenRepository = (*actionTokens)(nil)

// NewActionTokensRepository builds the bun backed action token repository.
// The token column is the primary key, so the database enforces the
// uniqueness invariant whatever the generator does.
func NewActionTokensRepository(db *bun.DB) ActionTokenRepository {
	return &actionTokens{db: db}
}

func (a *actionTokens) Create(ctx context.Context, record *ActionToken) (*ActionToken, error) {
	now := time.Now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}

	if _, err := a.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *actionTokens) GetByToken(ctx context.Context, token string) (*ActionToken, error) {
	record := &ActionToken{}
	err := a.db.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"token": token})
		}
		return nil, err
	}

	return record, nil
}

func (a *actionTokens) Exists(ctx context.Context, token string) (bool, error) {
	return a.db.NewSelect().
		Model((*ActionToken)(nil)).
		Where("?TableAlias.token = ?", token).
		Exists(ctx)
}

// DeleteByToken reports whether a row was removed. Zero rows is not an
// error: concurrent validations of the same expired token may race on
// the delete, and "already gone" must read as "not found", not a crash.
func (a *actionTokens) DeleteByToken(ctx context.Context, token string) (bool, error) {
	res, err := a.db.NewDelete().
		Model((*ActionToken)(nil)).
		Where("?TableAlias.token = ?", token).
		Exec(ctx)

	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (a *actionTokens) DeleteExpired(ctx context.Context) (int, error) {
	res, err := a.db.NewDelete().
		Model((*ActionToken)(nil)).
		Where("?TableAlias.expires_at IS NOT NULL").
		Where("?TableAlias.expires_at < ?", time.Now()).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(affected), nil
}
