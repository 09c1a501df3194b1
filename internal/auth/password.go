package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/hogar/internal/identity"
	"github.com/mmynk/hogar/internal/models"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrEmailExists        = errors.New("email already registered")
)

// UserStorage is the account table the authenticator reads and writes.
type UserStorage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// PasswordAuthenticator signs users in by email and bcrypt password hash. Emails are
// stored normalized so the account key matches the key household ids are built from.
type PasswordAuthenticator struct {
	users UserStorage
	cost  int
}

func NewPasswordAuthenticator(users UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{users: users, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost.
func (a *PasswordAuthenticator) WithCost(cost int) *PasswordAuthenticator {
	a.cost = cost
	return a
}

func (a *PasswordAuthenticator) ValidateCredential(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Register creates an account. ErrEmailExists is returned when the normalized email is
// taken.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, displayName, password string) (*models.User, error) {
	if err := a.ValidateCredential(password); err != nil {
		return nil, err
	}
	key := string(identity.NormalizeKey(email))

	taken, err := a.users.GetUserByEmail(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", key, err)
	}
	if taken != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := models.NewUser(key, displayName, string(hash))
	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", key, err)
	}
	return user, nil
}

// Authenticate returns the account for email when password matches. Unknown emails and
// wrong passwords both yield ErrInvalidCredentials.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.users.GetUserByEmail(ctx, string(identity.NormalizeKey(email)))
	if err != nil || user == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
