package usecase

import (
	"notifyhub/internal/entity"
	"notifyhub/pkg/jwt"
)

type AuthUsecase interface {
	// VerifyToken returns the identity carried by a valid access token.
	VerifyToken(token string) (*entity.TokenClaims, error)
	IssueToken(userId, email string) (string, error)
}

type authUsecase struct {
	jwtManager *jwt.JWTManager
}

func NewAuthUsecase(jwtManager *jwt.JWTManager) AuthUsecase {
	return &authUsecase{
		jwtManager: jwtManager,
	}
}

func (u *authUsecase) VerifyToken(token string) (*entity.TokenClaims, error) {
	return u.jwtManager.ValidateAccessToken(token)
}

// IssueToken mints an access token. Roles are not embedded with authority;
// they are always resolved from the user store.
func (u *authUsecase) IssueToken(userId, email string) (string, error) {
	return u.jwtManager.GenerateAccessToken(userId, email)
}
