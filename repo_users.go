package identity

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"is_email_verified" = TRUE,
	"password_hash" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// Users is the principal repository. It implements the UserLookup
// capability the token store and session engine consume.
type Users interface {
	UserLookup

	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	AssignRolesTx(ctx context.Context, tx bun.IDB, user *User, roles []*Role) error
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users      = (*users)(nil)
	_ UserLookup = (*users)(nil)
)

// NewUsersRepository builds the bun backed Users repository
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Relation("Roles").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Relation("Roles").
		Where("?TableAlias.email = ?", strings.ToLower(strings.TrimSpace(email))).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Exists(ctx context.Context, email string) (bool, error) {
	return a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", strings.ToLower(strings.TrimSpace(email))).
		Exists(ctx)
}

func (a *users) Update(ctx context.Context, record *User) (*User, error) {
	return a.Repository.UpdateTx(ctx, a.db, record, repository.UpdateByID(record.ID.String()))
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record)
}

// AssignRolesTx links the given roles to the user. Roles are set once at
// account creation from the invite token and immutable after.
func (a *users) AssignRolesTx(ctx context.Context, tx bun.IDB, user *User, roles []*Role) error {
	if len(roles) == 0 {
		return nil
	}

	links := make([]*UserToRole, 0, len(roles))
	for _, role := range roles {
		if role == nil {
			continue
		}
		links = append(links, &UserToRole{
			UserID: user.ID,
			RoleID: role.ID,
		})
	}

	_, err := tx.NewInsert().Model(&links).Exec(ctx)
	if err == nil {
		user.Roles = roles
	}
	return err
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetUserPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	loggedInAt := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET "loggedin_at" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))

	if record.Username == "" {
		record.Username = usernameFromEmail(record.Email)
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func usernameFromEmail(email string) string {
	if strings.Contains(email, "@") {
		return strings.Split(email, "@")[0]
	}
	return email
}
