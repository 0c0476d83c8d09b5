package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/layer-3/webnote/core"
	"github.com/layer-3/webnote/ports"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type user struct {
	bun.BaseModel `bun:"table:users"`

	ID       string `bun:",pk"`
	Name     string `bun:",notnull"`
	Email    string
	Password string

	OIDCSubject string `bun:"oidc_subject,unique,nullzero"`
	OIDCName    string `bun:"oidc_name"`
	OIDCEmail   string `bun:"oidc_email"`

	GithubSubject string `bun:",unique,nullzero"`
	GithubName    string
	GithubEmail   string

	EthersAddress string `bun:",unique,nullzero"`

	CreatedAt time.Time `bun:",notnull"`
	UpdatedAt time.Time `bun:",notnull"`
}

// OpenSQLite opens a bun database on the sqlite driver selected by sqliteshim
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// BunStore is a SQL implementation of the UserStore interface
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

// NewBunStore creates the users table when missing and returns the store
func NewBunStore(ctx context.Context, db *bun.DB) (*BunStore, error) {
	s := &BunStore{
		db:  db,
		now: time.Now,
	}
	_, err := db.NewCreateTable().
		Model((*user)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}
	return s, nil
}

var _ ports.UserStore = (*BunStore)(nil)

func (s *BunStore) GetByID(ctx context.Context, id string) (*core.User, error) {
	return s.getWhere(ctx, "id = ?", id)
}

func (s *BunStore) GetByName(ctx context.Context, name string) (*core.User, error) {
	return s.getWhere(ctx, "name = ?", name)
}

func (s *BunStore) GetByExternalSubject(ctx context.Context, provider core.PrincipalType, subject string) (*core.User, error) {
	if subject == "" {
		return nil, core.ErrUserNotFound
	}

	column, err := subjectColumn(provider)
	if err != nil {
		return nil, err
	}

	return s.getWhere(ctx, "? = ?", bun.Ident(column), subject)
}

// Save inserts or updates the user
func (s *BunStore) Save(ctx context.Context, u *core.User) (string, error) {
	now := s.now().UTC()
	u.UpdatedAt = now

	if u.ID == "" {
		u.ID = uuid.NewString()
		u.CreatedAt = now

		row := new(user)
		if err := copier.Copy(row, u); err != nil {
			return "", fmt.Errorf("failed to map user: %w", err)
		}
		if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
			u.ID = ""
			return "", fmt.Errorf("failed to create user: %w", err)
		}
		return u.ID, nil
	}

	row := new(user)
	if err := copier.Copy(row, u); err != nil {
		return "", fmt.Errorf("failed to map user: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model(row).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", fmt.Errorf("failed to update user: %w", core.ErrUserNotFound)
	}

	return u.ID, nil
}

// Close closes the database
func (s *BunStore) Close() error {
	return s.db.Close()
}

func (s *BunStore) getWhere(ctx context.Context, query string, args ...any) (*core.User, error) {
	row := new(user)
	err := s.db.NewSelect().
		Model(row).
		Where(query, args...).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = core.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u := new(core.User)
	if err := copier.Copy(u, row); err != nil {
		return nil, fmt.Errorf("failed to map user: %w", err)
	}
	return u, nil
}

func subjectColumn(provider core.PrincipalType) (string, error) {
	switch provider {
	case core.PrincipalOIDC:
		return "oidc_subject", nil
	case core.PrincipalGithub:
		return "github_subject", nil
	case core.PrincipalEthers:
		return "ethers_address", nil
	default:
		return "", fmt.Errorf("no external subject for principal %q: %w", provider, core.ErrUserNotFound)
	}
}
