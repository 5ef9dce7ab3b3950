// Package services содержит бизнес-логику профилей пользователей:
// поиск с учетом прав доступа к полям, создание, обновление и удаление,
// а также кеширование профилей в Redis.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/magabrotheeeer/user-management/internal/access"
	"github.com/magabrotheeeer/user-management/internal/cache"
	"github.com/magabrotheeeer/user-management/internal/lib/apperr"
	"github.com/magabrotheeeer/user-management/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/user-management/internal/lib/sl"
	"github.com/magabrotheeeer/user-management/internal/lib/validation"
	"github.com/magabrotheeeer/user-management/internal/models"
	"github.com/magabrotheeeer/user-management/internal/storage/repository"
)

// UserRepository определяет методы для работы с пользователями в хранилище.
type UserRepository interface {
	// Find возвращает пользователей, подходящих под фильтр.
	Find(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	// GetByID возвращает пользователя по идентификатору.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail возвращает пользователя по адресу почты.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// EmailTaken сообщает, занят ли адрес.
	EmailTaken(ctx context.Context, email string) (bool, error)
	// Create сохраняет пользователя и возвращает его ID.
	Create(ctx context.Context, user models.User) (string, error)
	// UpdateOne применяет частичное обновление.
	UpdateOne(ctx context.Context, filter models.UserFilter, patch models.UserPatch) (models.UpdateResult, error)
	// DeleteOne удаляет пользователя вместе с зависимыми записями.
	DeleteOne(ctx context.Context, filter models.UserFilter) (int64, error)
}

// Cache описывает методы для кэширования профилей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Hasher хэширует пароли перед сохранением.
type Hasher interface {
	GetHash(password string) (string, error)
	PrepareForPersist(patch models.UserPatch) (models.UserPatch, error)
}

// Verifier отправляет письмо подтверждения новой учетной записи.
type Verifier interface {
	IssueVerification(ctx context.Context, user *models.User) error
}

// Publisher публикует почтовые задания в очередь.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// CreateResult результат создания учетной записи.
type CreateResult struct {
	User *models.User
	// VerificationSent ложно, если письмо подтверждения не ушло и его
	// нужно запросить повторно.
	VerificationSent bool
}

// UserService реализует бизнес-логику работы с профилями.
type UserService struct {
	repo      UserRepository
	cache     Cache
	hasher    Hasher
	verifier  Verifier
	publisher Publisher
	cacheTTL  time.Duration
	log       *slog.Logger
}

// NewUserService создает новый экземпляр UserService.
func NewUserService(repo UserRepository, cache Cache, hasher Hasher, verifier Verifier,
	publisher Publisher, cacheTTL time.Duration, log *slog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		cache:     cache,
		hasher:    hasher,
		verifier:  verifier,
		publisher: publisher,
		cacheTTL:  cacheTTL,
		log:       log,
	}
}

// List возвращает профили, подходящие под параметры запроса, в проекции,
// доступной субъекту.
func (s *UserService) List(ctx context.Context, identity models.Identity, query url.Values) ([]any, error) {
	const op = "services.user.List"

	filter, err := access.ParseQuery(identity.Role, query)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(users) == 0 {
		return nil, apperr.E(apperr.NotFound, "No users were found that match the given filters", nil)
	}
	return access.ProjectList(identity, users), nil
}

// Get возвращает профиль по идентификатору или "active".
func (s *UserService) Get(ctx context.Context, identity models.Identity, param string) (any, error) {
	const op = "services.user.Get"

	user, err := s.lookup(ctx, access.ResolveTarget(identity, param))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.E(apperr.NotFound, "User not found", nil)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return access.ProjectForRead(identity, user)
}

// ResolveIdentity возвращает субъект по идентификатору из токена сессии.
// Пользователь должен существовать.
func (s *UserService) ResolveIdentity(ctx context.Context, userID string) (models.Identity, error) {
	const op = "services.user.ResolveIdentity"

	user, err := s.lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Identity{}, apperr.E(apperr.Unauthorized, "Invalid authorization", nil)
		}
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.Identity{ID: user.ID, Role: user.Role}, nil
}

// lookup читает профиль через кеш.
func (s *UserService) lookup(ctx context.Context, id string) (*models.User, error) {
	key := cache.UserKey(id)

	var cached models.User
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read user from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, user, s.cacheTTL); err != nil {
		s.log.Warn("failed to cache user", slog.String("key", key), sl.Err(err))
	}
	return user, nil
}

// Create создает учетную запись с ролью USER и отправляет письмо
// подтверждения. Ошибка отправки не отменяет создание.
func (s *UserService) Create(ctx context.Context, in models.NewUser) (*CreateResult, error) {
	const op = "services.user.Create"

	taken, err := s.repo.EmailTaken(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if taken {
		return nil, apperr.E(apperr.BadRequest, "User already exists", nil)
	}

	user, err := s.newUser(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	id, err := s.repo.Create(ctx, *user)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, apperr.E(apperr.BadRequest, "User already exists", nil)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stored, err := s.repo.GetByID(ctx, id); err == nil {
		user = stored
	} else {
		user.ID = id
	}
	s.log.Info("created new user", sl.UserID(id))

	result := &CreateResult{User: user, VerificationSent: true}
	if err := s.verifier.IssueVerification(ctx, user); err != nil {
		s.log.Error("failed to send verification email for new user", sl.UserID(id), sl.Err(err))
		result.VerificationSent = false
	}
	return result, nil
}

func (s *UserService) newUser(in models.NewUser) (*models.User, error) {
	hash, err := s.hasher.GetHash(in.Password)
	if err != nil {
		return nil, err
	}
	role := in.Role
	if !role.Valid() {
		role = models.RoleUser
	}
	return &models.User{
		Email:        in.Email,
		Role:         role,
		PasswordHash: hash,
		Name:         in.Name,
		LastName:     in.LastName,
		ProfilePhoto: in.ProfilePhoto,
		PhoneNumber:  in.PhoneNumber,
		Country:      in.Country,
		Address:      in.Address,
		Age:          in.Age,
		Gender:       in.Gender,
		IsPublic:     in.IsPublic,
		Studies:      in.Studies,
		Professions:  in.Professions,
		Interests:    in.Interests,
	}, nil
}

// Update применяет частичное обновление профиля. keys имена атрибутов,
// переданные в теле запроса.
func (s *UserService) Update(ctx context.Context, identity models.Identity, param string, keys []string, patch models.UserPatch) error {
	const op = "services.user.Update"

	if err := access.CheckPatch(identity.Role, keys); err != nil {
		return err
	}
	target := access.ResolveTarget(identity, param)
	if err := access.CanModify(identity, target, access.ActionChange); err != nil {
		return err
	}

	if patch.Email != nil {
		taken, err := s.repo.EmailTaken(ctx, *patch.Email)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if taken {
			return apperr.E(apperr.BadRequest, "User already exists", nil)
		}
	}

	patch, err := s.hasher.PrepareForPersist(patch)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.repo.UpdateOne(ctx, models.ByID(target), patch)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return apperr.E(apperr.BadRequest, "User already exists", nil)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.Matched == 0 {
		return apperr.E(apperr.NotFound, "User not found.", nil)
	}
	if res.Modified == 0 {
		return apperr.E(apperr.Integrity, "User not modified.", nil)
	}

	s.invalidate(ctx, target)
	s.log.Info("updated user", sl.UserID(target))
	return nil
}

// Delete удаляет учетную запись вместе с записью аутентификации и
// отозванными токенами.
func (s *UserService) Delete(ctx context.Context, identity models.Identity, param string) error {
	const op = "services.user.Delete"

	target := access.ResolveTarget(identity, param)
	if err := access.CanModify(identity, target, access.ActionDelete); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteOne(ctx, models.ByID(target))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if deleted == 0 {
		return apperr.E(apperr.NotFound, "User not found.", nil)
	}

	s.invalidate(ctx, target)
	s.log.Info("deleted user", sl.UserID(target))
	return nil
}

// SendFeedback ставит сообщение обратной связи в очередь на отправку.
func (s *UserService) SendFeedback(ctx context.Context, feedback models.Feedback) error {
	const op = "services.user.SendFeedback"
	if err := s.publisher.Publish(ctx, rabbitmq.RoutingFeedback, feedback); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EnsureAdmin создает подтвержденную учетную запись администратора, если
// адреса еще нет в хранилище. Пустой email означает, что создавать не нужно.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	const op = "services.user.EnsureAdmin"
	if email == "" {
		return nil
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !validation.IsStrongPassword(password) {
		return fmt.Errorf("%s: admin password does not satisfy the password policy", op)
	}

	user, err := s.newUser(models.NewUser{Email: email, Password: password, Role: models.RoleAdmin})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.IsVerified = true
	id, err := s.repo.Create(ctx, *user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("created admin account", sl.UserID(id))
	return nil
}

func (s *UserService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, cache.UserKey(id)); err != nil {
		s.log.Warn("failed to invalidate user cache", sl.UserID(id), sl.Err(err))
	}
}
