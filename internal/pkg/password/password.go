package password

import (
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinLength = 6
	// MaxBytes is the longest input bcrypt accepts.
	MaxBytes = 72
)

func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// DummyHash returns a valid hash that matches no user input. Comparing
// against it costs the same as comparing against a stored hash.
func DummyHash() string {
	dummyOnce.Do(func() {
		hashed, err := bcrypt.GenerateFromPassword([]byte("mtodo:no-such-account"), bcrypt.DefaultCost)
		if err == nil {
			dummyHash = string(hashed)
		}
	})
	return dummyHash
}

func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// TooShort reports whether plain has fewer than MinLength characters.
func TooShort(plain string) bool {
	return utf8.RuneCountInString(plain) < MinLength
}

func TooLong(plain string) bool {
	return len(plain) > MaxBytes
}
