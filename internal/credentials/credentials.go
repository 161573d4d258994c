// Package credentials hashes staff passwords and maintains the admin account.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/apperrors"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/catalog"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/model"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/storage"
	"gitlab.com/timkado/api/clinic-schema-provisioner/internal/validator"
	"gitlab.com/timkado/api/clinic-schema-provisioner/pkg/logger"
)

const minPasswordLength = 8

// Hasher produces bcrypt password hashes.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost; 0 selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash.
func Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UpsertAdmin sets the password of the admin account with the given email,
// creating the account when it does not exist. An existing account is
// promoted to admin. It reports whether a new row was created.
func UpsertAdmin(ctx context.Context, store *storage.Store, email, passwordHash string) (bool, error) {
	if err := validator.ValidateVar(email, "required,email"); err != nil {
		return false, fmt.Errorf("%w: admin email %q", apperrors.ErrValidation, email)
	}

	exists, err := store.TableExists(ctx, catalog.TableUsers)
	if err != nil {
		return false, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	if !exists {
		return false, fmt.Errorf("%w: table %s in %s, run provision first", apperrors.ErrNotFound, catalog.TableUsers, store.Location())
	}

	_, err = FindUser(ctx, store, email)
	created := errors.Is(err, apperrors.ErrNotFound)
	if err != nil && !created {
		return false, err
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (id, email, password_hash, full_name, role) VALUES (?, ?, ?, ?, ?) `+
		`ON CONFLICT (email) DO UPDATE SET password_hash = excluded.password_hash, role = excluded.role, updated_at = CURRENT_TIMESTAMP`,
		store.Qualify(catalog.TableUsers))
	if _, err := store.Exec(ctx, stmt, catalog.SeedID(catalog.TableUsers, email), email, passwordHash, catalog.AdminFullName, model.RoleAdmin); err != nil {
		return false, fmt.Errorf("%w: failed to upsert admin %s: %w", apperrors.ErrDatabase, email, err)
	}

	logger.FromContext(ctx).Info("Admin credentials updated",
		zap.String("email", email),
		zap.Bool("created", created),
		zap.String("location", store.Location()),
	)
	return created, nil
}

// FindUser loads the user with the given email.
func FindUser(ctx context.Context, store *storage.Store, email string) (*model.User, error) {
	var user model.User
	err := store.DB().WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, email)
		}
		return nil, fmt.Errorf("%w: failed to find user %s: %w", apperrors.ErrDatabase, email, err)
	}
	return &user, nil
}
