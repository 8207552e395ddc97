// Package postgres stores accounts and roles in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/identitykit/auth/auth"
)

const uniqueViolation = "23505"

// Store implements auth.UserStore and auth.RoleStore.
type Store struct {
	db *sql.DB
}

// NewStore returns a new Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FindByUsername implements the auth.UserStore interface.
func (s *Store) FindByUsername(ctx context.Context, username string) (auth.Account, error) {
	query :=
		`SELECT id, username, password_hash, email, created_at FROM accounts
		 WHERE username = $1`

	var account auth.Account

	err := s.db.QueryRowContext(ctx, query, username).
		Scan(&account.ID, &account.Username, &account.PasswordHash, &account.Email, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	if err != nil {
		return auth.Account{}, fmt.Errorf("query account by username: %w", err)
	}

	account.Roles, err = s.accountRoles(ctx, account.ID)
	if err != nil {
		return auth.Account{}, err
	}

	return account, nil
}

func (s *Store) accountRoles(ctx context.Context, accountID string) ([]auth.Role, error) {
	query :=
		`SELECT r.id, r.name FROM roles r
		 JOIN account_roles ar ON ar.role_id = r.id
		 WHERE ar.account_id = $1
		 ORDER BY r.name`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("query account roles: %w", err)
	}
	defer rows.Close()

	var roles []auth.Role

	for rows.Next() {
		var role auth.Role

		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("scan account role: %w", err)
		}

		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query account roles: %w", err)
	}

	return roles, nil
}

// Save implements the auth.UserStore interface.
// The account and its role links are written in one transaction.
func (s *Store) Save(ctx context.Context, account auth.Account) (auth.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Account{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, username, password_hash, email, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.Username, account.PasswordHash, account.Email, account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.Account{}, auth.ErrUsernameTaken
		}

		return auth.Account{}, fmt.Errorf("insert account: %w", err)
	}

	for _, role := range account.Roles {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_roles (account_id, role_id) VALUES ($1, $2)`,
			account.ID, role.ID,
		)
		if err != nil {
			return auth.Account{}, fmt.Errorf("insert account role %s: %w", role.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return auth.Account{}, fmt.Errorf("commit transaction: %w", err)
	}

	return account, nil
}

// FindByName implements the auth.RoleStore interface.
func (s *Store) FindByName(ctx context.Context, name string) (auth.Role, error) {
	var role auth.Role

	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM roles WHERE name = $1`, name).Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrRoleNotFound
	}
	if err != nil {
		return auth.Role{}, fmt.Errorf("query role by name: %w", err)
	}

	return role, nil
}

// EnsureRole creates a role unless it already exists.
func (s *Store) EnsureRole(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("ensure role %s: %w", name, err)
	}

	return nil
}
