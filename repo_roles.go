package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles is the role repository, implementing the RoleLookup capability
type Roles interface {
	RoleLookup

	Create(ctx context.Context, record *Role) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var (
	_ Roles      = (*roles)(nil)
	_ RoleLookup = (*roles)(nil)
)

// NewRolesRepository builds the bun backed Roles repository
func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

// FindByNames returns the roles matching the given names. Callers that
// need all names resolved must compare lengths themselves; unknown names
// are simply absent from the result.
func (a *roles) FindByNames(ctx context.Context, names []string) ([]*Role, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var records []*Role
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.name IN (?)", bun.In(names)).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *roles) GetByName(ctx context.Context, name string) (*Role, error) {
	record := &Role{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"name": name})
		}
		return nil, err
	}

	return record, nil
}

func (a *roles) Create(ctx context.Context, record *Role) (*Role, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, a.db, record)
}
