package credentials

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// schemeBcrypt is stored next to every hash so another scheme can be
// read alongside it later.
const schemeBcrypt = "bcrypt"

var errMismatch = errors.New("credentials: password mismatch")

// Hasher hashes passwords at a fixed bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher falls back to bcrypt.DefaultCost for a cost bcrypt rejects.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

func (h Hasher) Hash(password string) (hash, scheme string, err error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", "", fmt.Errorf("credentials: hash: %w", err)
	}
	return string(b), schemeBcrypt, nil
}

// Verify checks password against a stored hash. stale reports a match
// whose hash was made at a lower cost than h uses now.
func (h Hasher) Verify(hash, scheme, password string) (stale bool, err error) {
	if scheme != schemeBcrypt {
		return false, fmt.Errorf("credentials: unsupported hash scheme %q", scheme)
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, errMismatch
	}
	if err != nil {
		return false, fmt.Errorf("credentials: verify: %w", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return false, nil
	}
	return cost < h.cost, nil
}
