package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/magabrotheeeer/user-management/internal/models"
)

const userColumns = `id::text, email, role, password_hash,
	COALESCE(name, ''), COALESCE(last_name, ''), COALESCE(profile_photo, ''),
	COALESCE(phone_number, ''), COALESCE(country, ''),
	COALESCE(address_street, ''), COALESCE(address_city, ''),
	COALESCE(address_state, ''), COALESCE(address_zip, ''),
	age, COALESCE(gender, ''), is_verified, is_active, is_public,
	studies, professions, interests, created_at, updated_at`

var filterColumns = map[string]string{
	"_id":              "id",
	"email":            "email",
	"role":             "role",
	"name":             "name",
	"last_name":        "last_name",
	"phone_number":     "phone_number",
	"country":          "country",
	"address.street":   "address_street",
	"address.city":     "address_city",
	"address.state":    "address_state",
	"address.zip_code": "address_zip",
	"age":              "age",
	"gender":           "gender",
	"is_verified":      "is_verified",
	"is_active":        "is_active",
	"is_public":        "is_public",
	"studies":          "studies",
	"professions":      "professions",
	"interests":        "interests",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u       models.User
		role    string
		address models.Address
	)
	if err := row.Scan(&u.ID, &u.Email, &role, &u.PasswordHash,
		&u.Name, &u.LastName, &u.ProfilePhoto, &u.PhoneNumber, &u.Country,
		&address.Street, &address.City, &address.State, &address.ZipCode,
		&u.Age, &u.Gender, &u.IsVerified, &u.IsActive, &u.IsPublic,
		&u.Studies, &u.Professions, &u.Interests, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	if !address.IsZero() {
		u.Address = &address
	}
	return &u, nil
}

// buildWhere строит условие WHERE для фильтра. ok=false означает, что
// фильтр заведомо ничего не найдет (например, некорректный идентификатор).
func buildWhere(filter models.UserFilter, argOffset int) (where string, args []any, ok bool, err error) {
	var clauses []string
	if filter.OnlyPublic {
		clauses = append(clauses, "is_public = TRUE")
	}
	for _, c := range filter.Conditions {
		col, known := filterColumns[c.Field]
		if !known {
			return "", nil, false, fmt.Errorf("unknown filter field %q", c.Field)
		}
		if c.Field == "_id" {
			id, _ := c.Value.(string)
			if !validID(id) {
				return "", nil, false, nil
			}
		}
		args = append(args, c.Value)
		placeholder := fmt.Sprintf("$%d", argOffset+len(args))
		if c.Kind == models.ContainsAll {
			clauses = append(clauses, col+" @> "+placeholder)
		} else {
			clauses = append(clauses, col+" = "+placeholder)
		}
	}
	if len(clauses) == 0 {
		return "", args, true, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, true, nil
}

// Find возвращает пользователей, подходящих под фильтр, в порядке создания.
func (s *Storage) Find(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	const op = "storage.Find"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	where, args, ok, err := buildWhere(filter, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, nil
	}

	rows, err := s.DB.Query(ctx, "SELECT "+userColumns+" FROM users"+where+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindOne возвращает первого пользователя, подходящего под фильтр.
func (s *Storage) FindOne(ctx context.Context, filter models.UserFilter) (*models.User, error) {
	const op = "storage.FindOne"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	where, args, ok, err := buildWhere(filter, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	u, err := scanUser(s.DB.QueryRow(ctx, "SELECT "+userColumns+" FROM users"+where+" ORDER BY created_at LIMIT 1", args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetByID возвращает пользователя по идентификатору.
func (s *Storage) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.FindOne(ctx, models.ByID(id))
}

// GetByEmail возвращает пользователя по адресу почты.
func (s *Storage) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.FindOne(ctx, models.ByEmail(email))
}

// EmailTaken сообщает, занят ли адрес почты.
func (s *Storage) EmailTaken(ctx context.Context, email string) (bool, error) {
	const op = "storage.EmailTaken"
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// Create сохраняет нового пользователя и возвращает его идентификатор.
func (s *Storage) Create(ctx context.Context, user models.User) (string, error) {
	const op = "storage.Create"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var street, city, state, zip *string
	if user.Address != nil {
		street, city, state, zip = nullable(user.Address.Street), nullable(user.Address.City),
			nullable(user.Address.State), nullable(user.Address.ZipCode)
	}
	role := user.Role
	if role == "" {
		role = models.RoleUser
	}

	query := `INSERT INTO users (email, role, password_hash, name, last_name, profile_photo,
			      phone_number, country, address_street, address_city, address_state, address_zip,
			      age, gender, is_verified, is_active, is_public, studies, professions, interests)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
			  RETURNING id::text`
	var id string
	err := s.DB.QueryRow(ctx, query,
		user.Email, string(role), user.PasswordHash, nullable(user.Name), nullable(user.LastName),
		nullable(user.ProfilePhoto), nullable(user.PhoneNumber), nullable(user.Country),
		street, city, state, zip, user.Age, nullable(user.Gender),
		user.IsVerified, user.IsActive, user.IsPublic,
		nonNil(user.Studies), nonNil(user.Professions), nonNil(user.Interests),
	).Scan(&id)
	if isPgCode(err, codeUniqueViolation) {
		return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

type assignment struct {
	column string
	value  any
}

func patchAssignments(patch models.UserPatch) []assignment {
	var out []assignment
	add := func(column string, value any) {
		out = append(out, assignment{column: column, value: value})
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Role != nil {
		add("role", string(*patch.Role))
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.Name != nil {
		add("name", nullable(*patch.Name))
	}
	if patch.LastName != nil {
		add("last_name", nullable(*patch.LastName))
	}
	if patch.ProfilePhoto != nil {
		add("profile_photo", nullable(*patch.ProfilePhoto))
	}
	if patch.PhoneNumber != nil {
		add("phone_number", nullable(*patch.PhoneNumber))
	}
	if patch.Country != nil {
		add("country", nullable(*patch.Country))
	}
	if patch.Address != nil {
		add("address_street", nullable(patch.Address.Street))
		add("address_city", nullable(patch.Address.City))
		add("address_state", nullable(patch.Address.State))
		add("address_zip", nullable(patch.Address.ZipCode))
	}
	if patch.Age != nil {
		add("age", *patch.Age)
	}
	if patch.Gender != nil {
		add("gender", nullable(*patch.Gender))
	}
	if patch.IsVerified != nil {
		add("is_verified", *patch.IsVerified)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.IsPublic != nil {
		add("is_public", *patch.IsPublic)
	}
	if patch.Studies != nil {
		add("studies", nonNil(*patch.Studies))
	}
	if patch.Professions != nil {
		add("professions", nonNil(*patch.Professions))
	}
	if patch.Interests != nil {
		add("interests", nonNil(*patch.Interests))
	}
	return out
}

// UpdateOne применяет patch к первому пользователю, подходящему под фильтр.
// Matched показывает, найден ли пользователь, Modified отличается от нуля,
// только если хотя бы одно значение действительно изменилось.
func (s *Storage) UpdateOne(ctx context.Context, filter models.UserFilter, patch models.UserPatch) (models.UpdateResult, error) {
	const op = "storage.UpdateOne"
	var result models.UpdateResult
	if err := checkCtx(ctx, op); err != nil {
		return result, err
	}

	where, args, ok, err := buildWhere(filter, 0)
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return result, nil
	}

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, "SELECT id::text FROM users"+where+" ORDER BY created_at LIMIT 1 FOR UPDATE", args...).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		result.Matched = 1

		assignments := patchAssignments(patch)
		if len(assignments) == 0 {
			return nil
		}

		updateArgs := []any{id}
		sets := make([]string, 0, len(assignments)+1)
		diffs := make([]string, 0, len(assignments))
		for _, a := range assignments {
			updateArgs = append(updateArgs, a.value)
			placeholder := fmt.Sprintf("$%d", len(updateArgs))
			sets = append(sets, a.column+" = "+placeholder)
			diffs = append(diffs, a.column+" IS DISTINCT FROM "+placeholder)
		}
		sets = append(sets, "updated_at = now()")

		query := "UPDATE users SET " + strings.Join(sets, ", ") +
			" WHERE id = $1 AND (" + strings.Join(diffs, " OR ") + ")"
		tag, err := tx.Exec(ctx, query, updateArgs...)
		if err != nil {
			return err
		}
		result.Modified = tag.RowsAffected()
		return nil
	})
	if isPgCode(err, codeUniqueViolation) {
		return models.UpdateResult{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteOne удаляет первого пользователя, подходящего под фильтр, вместе с
// его записью аутентификации и отозванными токенами. Возвращает число
// удаленных пользователей.
func (s *Storage) DeleteOne(ctx context.Context, filter models.UserFilter) (int64, error) {
	const op = "storage.DeleteOne"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	where, args, ok, err := buildWhere(filter, 0)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return 0, nil
	}

	var deleted int64
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, "SELECT id::text FROM users"+where+" ORDER BY created_at LIMIT 1 FOR UPDATE", args...).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, `DELETE FROM black_listed_tokens WHERE user_id = $1`, id); err != nil {
			return err
		}
		if _, err = tx.Exec(ctx, `DELETE FROM auth_records WHERE user_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return deleted, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
