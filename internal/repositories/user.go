package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/affmigrate/internal/models"
	"github.com/desertthunder/affmigrate/internal/shared"
)

// FieldRoles selects a user's comma-joined roles in [UserRepository.ListUsers].
const FieldRoles = "roles"

var userOrderColumns = map[string]string{
	"":                     "u.id",
	models.FieldID:         "u.id",
	models.FieldLogin:      "u.login",
	models.FieldEmail:      "u.email",
	models.FieldRegistered: "u.registered_at",
}

// UserRepository is the user directory backed by the users and user_roles tables.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and its roles, setting the generated ID on user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = time.Now().UTC()
	}

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"INSERT INTO users (login, email, registered_at) VALUES (?, ?, ?)",
			user.Login, user.Email, user.RegisteredAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get user id: %w", err)
		}

		for _, role := range user.Roles {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)", id, role); err != nil {
				return fmt.Errorf("failed to insert role %s: %w", role, err)
			}
		}

		user.ID = id
		return nil
	})
}

// GetByLogin retrieves a user and its roles by login.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `
		SELECT u.id, u.login, u.email, u.registered_at,
			COALESCE((SELECT group_concat(role, ',') FROM user_roles WHERE user_id = u.id), '')
		FROM users u
		WHERE u.login = ?
	`

	var (
		user  models.User
		roles string
	)
	err := r.db.QueryRowContext(ctx, query, login).Scan(&user.ID, &user.Login, &user.Email, &user.RegisteredAt, &roles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, login)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.Roles = splitRoles(roles)
	return &user, nil
}

// RolesOf returns the roles held by the user with the given login.
func (r *UserRepository) RolesOf(ctx context.Context, login string) ([]string, error) {
	user, err := r.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	return user.Roles, nil
}

// ListUsers returns the users matching q.
//
// Only the fields named in q.Fields are populated; ID is always loaded.
func (r *UserRepository) ListUsers(ctx context.Context, q models.UserQuery) ([]models.User, error) {
	where, args, err := userWhere(q)
	if err != nil {
		return nil, err
	}

	orderCol, ok := userOrderColumns[q.OrderBy]
	if !ok {
		return nil, fmt.Errorf("%w: cannot order users by %q", shared.ErrInvalidArgument, q.OrderBy)
	}
	order := strings.ToUpper(q.Order)
	switch order {
	case "":
		order = models.OrderAsc
	case models.OrderAsc, models.OrderDesc:
	default:
		return nil, fmt.Errorf("%w: sort order %q", shared.ErrInvalidArgument, q.Order)
	}

	columns := []string{"u.id"}
	if q.Selects(models.FieldLogin) {
		columns = append(columns, "u.login")
	}
	if q.Selects(models.FieldEmail) {
		columns = append(columns, "u.email")
	}
	if q.Selects(models.FieldRegistered) {
		columns = append(columns, "u.registered_at")
	}
	if q.Selects(FieldRoles) {
		columns = append(columns, "COALESCE((SELECT group_concat(role, ',') FROM user_roles WHERE user_id = u.id), '')")
	}

	query := fmt.Sprintf("SELECT %s FROM users u%s ORDER BY %s %s", strings.Join(columns, ", "), where, orderCol, order)

	switch {
	case q.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, q.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var (
			user  models.User
			roles string
		)
		dest := []any{&user.ID}
		if q.Selects(models.FieldLogin) {
			dest = append(dest, &user.Login)
		}
		if q.Selects(models.FieldEmail) {
			dest = append(dest, &user.Email)
		}
		if q.Selects(models.FieldRegistered) {
			dest = append(dest, &user.RegisteredAt)
		}
		if q.Selects(FieldRoles) {
			dest = append(dest, &roles)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.Roles = splitRoles(roles)
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// CountUsers returns the number of users matching q's role and exclusion filters.
//
// Pagination and ordering fields of q are ignored.
func (r *UserRepository) CountUsers(ctx context.Context, q models.UserQuery) (int, error) {
	where, args, err := userWhere(q)
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users u"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// RoleCounts returns every assigned role with its number of users, ordered by role.
func (r *UserRepository) RoleCounts(ctx context.Context) ([]models.RoleCount, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT role, COUNT(*) FROM user_roles GROUP BY role ORDER BY role")
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var counts []models.RoleCount
	for rows.Next() {
		var rc models.RoleCount
		if err := rows.Scan(&rc.Role, &rc.Users); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		counts = append(counts, rc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return counts, nil
}

func userWhere(q models.UserQuery) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)

	if len(q.RoleIn) > 0 {
		roles, err := jsonArray(q.RoleIn)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, `EXISTS (
			SELECT 1 FROM user_roles ur
			WHERE ur.user_id = u.id AND ur.role IN (SELECT value FROM json_each(?))
		)`)
		args = append(args, roles)
	}

	if len(q.Exclude) > 0 {
		ids, err := jsonArray(q.Exclude)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, "u.id NOT IN (SELECT value FROM json_each(?))")
		args = append(args, ids)
	}

	if len(clauses) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func splitRoles(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
