package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// Paramètres Argon2id
const (
	Argon2Time    = 1
	Argon2Memory  = 32 * 1024
	Argon2Threads = 4
	Argon2KeyLen  = 32
	Argon2SaltLen = 16
)

var ErrInvalidHash = errors.New("hash invalide")

// HashPassword hash un mot de passe avec Argon2id
func HashPassword(password string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)

	// Format: $argon2id$v=19$m=32768,t=1,p=4$salt$hash
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword compare en temps constant. Un hash vide (compte social) ne matche jamais.
func VerifyPassword(password, encodedHash string) (bool, error) {
	if encodedHash == "" {
		return false, nil
	}
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, err
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, err
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, err
	}

	otherHash := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, otherHash) == 1, nil
}

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[\W_]`)
)

// ValidatePassword applique les règles de mot de passe dans l'ordre et retourne la première violation.
func ValidatePassword(password, username, email string) (string, error) {
	lowered := strings.ToLower(password)
	if containsFold(lowered, username) || containsFold(lowered, email) {
		return "", Validationf("Password should not contain your username or email.")
	}

	if n := utf8.RuneCountInString(password); n < 8 || n > 16 {
		return "", Validationf("Password must be between 8 and 16 characters.")
	}
	if !upperRe.MatchString(password) {
		return "", Validationf("Password must contain at least one uppercase letter.")
	}
	if !lowerRe.MatchString(password) {
		return "", Validationf("Password must contain at least one lowercase letter.")
	}
	if !digitRe.MatchString(password) {
		return "", Validationf("Password must contain at least one digit.")
	}
	if !specialRe.MatchString(password) {
		return "", Validationf("Password must contain at least one special character.")
	}
	return password, nil
}

// un username ou email vide ne doit pas tout rejeter
func containsFold(lowered, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(lowered, strings.ToLower(needle))
}
