package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserDataInvalid    = errors.New("invalid user data")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Service interface {
	Signup(ctx context.Context, email, password string) (User, error)
	Authenticate(ctx context.Context, email, password string) (User, error)
	GetUserByUid(ctx context.Context, uid string) (User, error)
	GetCurrentUser(ctx context.Context) (User, error)
}

type UserServiceImpl struct {
	repo Repo
	cost int
}

func NewUserService(repo Repo) *UserServiceImpl {
	return &UserServiceImpl{repo: repo, cost: bcrypt.DefaultCost}
}

// WithHashCost lowers the bcrypt cost, for tests.
func (u *UserServiceImpl) WithHashCost(cost int) *UserServiceImpl {
	u.cost = cost
	return u
}

func (u *UserServiceImpl) Signup(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, fmt.Errorf("%w: email %q", ErrUserDataInvalid, email)
	}
	if len(password) < MinPasswordLength {
		return User{}, fmt.Errorf("%w: password shorter than %d characters", ErrUserDataInvalid, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	created, err := u.repo.CreateUser(ctx, User{
		Uid:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return User{}, err
	}
	log.Infof("Account %s created", created.Uid)
	return created, nil
}

// Authenticate returns the account matching the credentials. Unknown emails and wrong
// passwords both yield ErrInvalidCredentials.
func (u *UserServiceImpl) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := u.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	} else if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Debugf("password mismatch for account %s", user.Uid)
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (u *UserServiceImpl) GetUserByUid(ctx context.Context, uid string) (User, error) {
	return u.repo.GetUserByUid(ctx, uid)
}

func (u *UserServiceImpl) GetCurrentUser(ctx context.Context) (User, error) {
	userId, err := CurrentId(ctx)
	if err != nil {
		return User{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return u.repo.GetUser(ctx, userId)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
