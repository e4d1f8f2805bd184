package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	Roles() Roles
	ActionTokens() ActionTokenRepository
	Sessions() SessionStore
}

type mngr struct {
	db           *bun.DB
	users        Users
	roles        Roles
	actionTokens ActionTokenRepository
	sessions     SessionStore
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:           db,
		users:        NewUsersRepository(db),
		roles:        NewRolesRepository(db),
		actionTokens: NewActionTokensRepository(db),
		sessions:     NewSessionsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.actionTokens == nil {
		return errors.New("repository actionTokens should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) ActionTokens() ActionTokenRepository {
	return m.actionTokens
}

func (m mngr) Sessions() SessionStore {
	return m.sessions
}
