package main

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultPassword = "123qwerty"

	PBKDF2DefaultIterations = 600000
	PBKDF2DefaultSaltLength = 10

	pbkdf2Prefix = "pbkdf2:"
	saltChars    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrUnknownPasswordScheme = errors.New("password: unknown hashing scheme")

type PasswordHasher interface {
	Hash(password string) (string, error)
}

func NewPasswordHasher(scheme string, bcryptCost int) (PasswordHasher, error) {
	switch scheme {
	case "bcrypt":
		return BcryptHasher{Cost: bcryptCost}, nil
	case "", "pbkdf2":
		return PBKDF2Hasher{Iterations: PBKDF2DefaultIterations, SaltLength: PBKDF2DefaultSaltLength}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPasswordScheme, scheme)
	}
}

// BcryptHasher rejects passwords longer than 72 bytes with
// bcrypt.ErrPasswordTooLong.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("password: bcrypt: %w", err)
	}

	return string(b), nil
}

// PBKDF2Hasher produces hashes in the "pbkdf2:sha256:<iterations>$<salt>$<hex>"
// format used by werkzeug, so databases written by either side stay readable.
type PBKDF2Hasher struct {
	Iterations int
	SaltLength int
}

func (h PBKDF2Hasher) Hash(password string) (string, error) {
	iterations := h.Iterations
	if iterations <= 0 {
		iterations = PBKDF2DefaultIterations
	}

	saltLen := h.SaltLength
	if saltLen <= 0 {
		saltLen = PBKDF2DefaultSaltLength
	}

	salt, err := randomSalt(saltLen)
	if err != nil {
		return "", err
	}

	dk := pbkdf2.Key([]byte(password), []byte(salt), iterations, sha256.Size, sha256.New)

	return fmt.Sprintf("%ssha256:%d$%s$%s", pbkdf2Prefix, iterations, salt, hex.EncodeToString(dk)), nil
}

// VerifyPassword reports whether password matches the stored hash. Both
// bcrypt and pbkdf2 hashes are accepted.
func VerifyPassword(hashed, password string) bool {
	if strings.HasPrefix(hashed, pbkdf2Prefix) {
		return verifyPBKDF2(hashed, password)
	}

	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
	return err == nil
}

func verifyPBKDF2(hashed, password string) bool {
	parts := strings.Split(hashed, "$")
	if len(parts) != 3 {
		return false
	}

	method := strings.Split(strings.TrimPrefix(parts[0], pbkdf2Prefix), ":")

	var newHash func() hash.Hash
	switch method[0] {
	case "sha256":
		newHash = sha256.New
	case "sha512":
		newHash = sha512.New
	default:
		return false
	}

	iterations := PBKDF2DefaultIterations
	if len(method) > 1 {
		n, err := strconv.Atoi(method[1])
		if err != nil || n <= 0 {
			return false
		}
		iterations = n
	}

	want, err := hex.DecodeString(parts[2])
	if err != nil || len(want) == 0 {
		return false
	}

	got := pbkdf2.Key([]byte(password), []byte(parts[1]), iterations, len(want), newHash)

	return subtle.ConstantTimeCompare(got, want) == 1
}

func randomSalt(n int) (string, error) {
	limit := big.NewInt(int64(len(saltChars)))

	var sb strings.Builder
	sb.Grow(n)

	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("password: salt: %w", err)
		}
		sb.WriteByte(saltChars[idx.Int64()])
	}

	return sb.String(), nil
}

// NewAccount builds an account with its credential already hashed. A zero
// dob resolves to the date of now.
func NewAccount(hasher PasswordHasher, name, uid, password string, dob, now time.Time) (Account, error) {
	if dob.IsZero() {
		dob = now
	}

	h, err := hasher.Hash(password)
	if err != nil {
		return Account{}, err
	}

	return Account{
		Name:         name,
		UID:          uid,
		PasswordHash: h,
		DOB:          truncateDate(dob),
	}, nil
}
