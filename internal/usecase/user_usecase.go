package usecase

import (
	"context"
	"errors"
	"time"

	"notifyhub/infrastructure/cache"
	"notifyhub/internal/entity"
	"notifyhub/internal/repository"

	"github.com/rs/zerolog"
)

var ErrInvalidRole = errors.New("role must be user or admin")

type UserUsecase interface {
	// GetRole resolves the role of userId. Unknown users and lookup failures
	// resolve to the least-privileged role.
	GetRole(ctx context.Context, userId string) entity.Role
	// SetRole stores a new role for userId and drops the cached one so the
	// next lookup sees it.
	SetRole(ctx context.Context, userId string, role entity.Role) error
}

type userUsecase struct {
	userRepo repository.UserRepository
	roles    *cache.TTLCache[entity.Role]
	ttl      time.Duration
	logger   zerolog.Logger
}

func NewUserUsecase(userRepo repository.UserRepository, roles *cache.TTLCache[entity.Role], ttl time.Duration, logger zerolog.Logger) UserUsecase {
	return &userUsecase{
		userRepo: userRepo,
		roles:    roles,
		ttl:      ttl,
		logger:   logger,
	}
}

func (u *userUsecase) GetRole(ctx context.Context, userId string) entity.Role {
	if role, ok := u.roles.Get(userId); ok {
		return role
	}

	user, err := u.userRepo.FindByID(ctx, userId)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			u.logger.Warn().Err(err).Str("userId", userId).Msg("Role lookup failed, defaulting to user")
		}
		return entity.RoleUser
	}

	role := entity.ParseRole(string(user.Role))
	u.roles.Set(userId, role, u.ttl)
	return role
}

func (u *userUsecase) SetRole(ctx context.Context, userId string, role entity.Role) error {
	if role != entity.RoleUser && role != entity.RoleAdmin {
		return ErrInvalidRole
	}
	if err := u.userRepo.UpdateRole(ctx, userId, role); err != nil {
		return err
	}
	u.roles.Delete(userId)
	u.logger.Info().Str("userId", userId).Str("role", string(role)).Msg("Role updated")
	return nil
}
