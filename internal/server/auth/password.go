package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is a seam so tests can hash quickly.
var bcryptCost = bcrypt.DefaultCost

// dummyHash is compared against when a login names an unknown user, so that
// response time does not reveal whether the account exists.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("ulpt-dummy-password"), bcryptCost)
	if err != nil {
		panic(err)
	}
	return h
})

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether password matches hash. An empty hash (a user
// who never set a password) never matches, but costs the same time.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckDummy burns one bcrypt comparison and always fails.
func CheckDummy(password string) bool {
	return CheckPassword("", password)
}

// IsHashTooLong reports whether password exceeds what bcrypt accepts.
func IsHashTooLong(err error) bool {
	return errors.Is(err, bcrypt.ErrPasswordTooLong)
}
