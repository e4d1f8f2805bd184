package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type sessions struct {
	db *bun.DB
}

var _ SessionStore = (*sessions)(nil)

// NewSessionsRepository builds the bun backed session record store
func NewSessionsRepository(db *bun.DB) SessionStore {
	return &sessions{db: db}
}

func (a *sessions) Create(ctx context.Context, record *SessionRecord) (*SessionRecord, error) {
	if _, err := a.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *sessions) GetByToken(ctx context.Context, token string) (*SessionRecord, error) {
	record := &SessionRecord{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *sessions) DeleteByToken(ctx context.Context, token string) error {
	res, err := a.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("?TableAlias.token = ?", token).
		Exec(ctx)

	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.NewRecordNotFound()
	}

	return nil
}

func (a *sessions) DeleteExpired(ctx context.Context) (int, error) {
	res, err := a.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("?TableAlias.expiration_date < ?", time.Now()).
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
