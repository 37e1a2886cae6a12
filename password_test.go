package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h, err := BcryptHasher{Cost: bcrypt.MinCost}.Hash("123toby")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(h, "$2"))
	assert.True(t, VerifyPassword(h, "123toby"))
	assert.False(t, VerifyPassword(h, "123niko"))
	assert.False(t, VerifyPassword(h, ""))
}

func TestPBKDF2Hasher(t *testing.T) {
	h, err := PBKDF2Hasher{Iterations: 1000, SaltLength: 10}.Hash("123toby")
	require.NoError(t, err)

	parts := strings.Split(h, "$")
	require.Len(t, parts, 3)
	assert.Equal(t, "pbkdf2:sha256:1000", parts[0])
	assert.Len(t, parts[1], 10)
	assert.Len(t, parts[2], 64)

	assert.True(t, VerifyPassword(h, "123toby"))
	assert.False(t, VerifyPassword(h, "123tobY"))

	other, err := PBKDF2Hasher{Iterations: 1000, SaltLength: 10}.Hash("123toby")
	require.NoError(t, err)
	assert.NotEqual(t, h, other, "salts must differ")
}

func TestVerifyPassword_WerkzeugHashes(t *testing.T) {
	const (
		sha256Hash = "pbkdf2:sha256:1000$abcdefghij$388051ae6f8412a6096e1a5c27fed873d2f8798c8dbe7f00536227ab85a420c4"
		sha512Hash = "pbkdf2:sha512:1000$saltsalt$e385980919dd3933decd7fa5f809895ebea9b5ab1eb0d0aac02c9209f4c9063d9ffe274c5c560e422b7a96e603a029ff923487a48239fb95f2523e0696638893"
	)

	assert.True(t, VerifyPassword(sha256Hash, "123toby"))
	assert.False(t, VerifyPassword(sha256Hash, "123niko"))
	assert.True(t, VerifyPassword(sha512Hash, "123niko"))
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, h := range []string{
		"",
		"pbkdf2:sha256",
		"pbkdf2:md5:1000$salt$abcd",
		"pbkdf2:sha256:x$salt$abcd",
		"pbkdf2:sha256:1000$salt$zz",
		"not-a-hash",
	} {
		assert.False(t, VerifyPassword(h, "anything"), h)
	}
}

func TestNewPasswordHasher(t *testing.T) {
	h, err := NewPasswordHasher("bcrypt", bcrypt.MinCost)
	require.NoError(t, err)
	assert.IsType(t, BcryptHasher{}, h)

	h, err = NewPasswordHasher("pbkdf2", 0)
	require.NoError(t, err)
	assert.IsType(t, PBKDF2Hasher{}, h)

	h, err = NewPasswordHasher("", bcrypt.MinCost)
	require.NoError(t, err)
	assert.IsType(t, PBKDF2Hasher{}, h, "pbkdf2 is the default scheme")

	_, err = NewPasswordHasher("md5", 0)
	assert.ErrorIs(t, err, ErrUnknownPasswordScheme)
}

func TestNewAccount(t *testing.T) {
	now := time.Date(2024, time.March, 1, 15, 4, 5, 0, time.UTC)
	hasher := BcryptHasher{Cost: bcrypt.MinCost}

	a, err := NewAccount(hasher, "Alexander Graham Bell", "lex", DefaultPassword, time.Time{}, now)
	require.NoError(t, err)

	assert.Equal(t, date(2024, time.March, 1), a.DOB, "zero dob resolves to today")
	assert.NotEqual(t, DefaultPassword, a.PasswordHash)
	assert.True(t, a.IsPassword(DefaultPassword))
	assert.False(t, a.IsPassword("123lex"))

	b, err := NewAccount(hasher, "Thomas Edison", "toby", "123toby", date(1847, time.February, 11), now)
	require.NoError(t, err)
	assert.Equal(t, 177, b.Age(now))
}

func TestHashers_LongPassword(t *testing.T) {
	long := strings.Repeat("a", 72) + "secret-tail"

	h, err := PBKDF2Hasher{Iterations: 1000}.Hash(long)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, long))
	assert.False(t, VerifyPassword(h, strings.Repeat("a", 72)))

	_, err = BcryptHasher{Cost: bcrypt.MinCost}.Hash(long)
	assert.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)
}
