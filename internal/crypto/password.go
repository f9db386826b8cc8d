package crypto

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MinPasswordCost is the lowest bcrypt cost accepted for stored hashes.
const MinPasswordCost = 12

// ErrPasswordMismatch is returned by Compare for a wrong password.
var ErrPasswordMismatch = errors.New("password mismatch")

// PasswordHasher runs bcrypt with bounded parallelism so a burst of logins
// cannot occupy every CPU.
type PasswordHasher struct {
	cost  int
	slots *semaphore.Weighted
	dummy []byte
}

// NewPasswordHasher builds a hasher. concurrency <= 0 means GOMAXPROCS.
func NewPasswordHasher(cost, concurrency int) (*PasswordHasher, error) {
	if cost < MinPasswordCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, MinPasswordCost, bcrypt.MaxCost)
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("console-identity-dummy"), cost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &PasswordHasher{cost: cost, slots: semaphore.NewWeighted(int64(concurrency)), dummy: dummy}, nil
}

func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// Compare checks password against hash. It returns ErrPasswordMismatch on a
// wrong password and other errors for malformed hashes or cancellation.
func (h *PasswordHasher) Compare(ctx context.Context, hash, password string) error {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.slots.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// CompareDummy spends one comparison against a fixed hash so that a login for
// a missing account takes as long as one with a wrong password.
func (h *PasswordHasher) CompareDummy(ctx context.Context, password string) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return
	}
	defer h.slots.Release(1)
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
