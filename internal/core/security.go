// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("malformed password hash")

// argonParams describes one argon2id configuration. The encoded form is the
// PHC string "$argon2id$v=19$m=...,t=...,p=...$salt$hash".
type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var currentParams = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

const saltLength = 16

func (p argonParams) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

func (p argonParams) encode(salt, key []byte) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func parseHash(encoded string) (argonParams, []byte, []byte, error) {
	var p argonParams

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[1] != "argon2id" {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[2])
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: params %q", ErrMalformedHash, fields[3])
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}

	key, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}

	//nolint:gosec // G115: argon2 keys are a few dozen bytes
	p.keyLen = uint32(len(key))

	return p, salt, key, nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return currentParams.encode(salt, currentParams.derive(password, salt)), nil
}

// VerifyPassword checks password against an encoded hash. When the hash was
// produced with older parameters and the password matches, rehash holds a
// replacement encoded with the current ones.
func VerifyPassword(password, encoded string) (ok bool, rehash string, err error) {
	params, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, "", err
	}

	if subtle.ConstantTimeCompare(key, params.derive(password, salt)) != 1 {
		return false, "", nil
	}

	if params != currentParams {
		if upgraded, hashErr := HashPassword(password); hashErr == nil {
			rehash = upgraded
		}
	}

	return true, rehash, nil
}

var placeholderHash = sync.OnceValue(func() string {
	hash, err := HashPassword("placeholder-for-unknown-accounts")
	if err != nil {
		panic(fmt.Sprintf("security: placeholder hash: %v", err))
	}
	return hash
})

// VerifyPasswordTimingSafe behaves like VerifyPassword but still spends a
// full derivation when the account has no stored hash, so unknown emails
// take as long to reject as wrong passwords.
func VerifyPasswordTimingSafe(password string, encoded *string) (bool, string, error) {
	if encoded == nil || *encoded == "" {
		//nolint:errcheck // result is discarded on purpose
		_, _, _ = VerifyPassword(password, placeholderHash())
		return false, "", nil
	}

	return VerifyPassword(password, *encoded)
}

func needsRehash(encoded string) bool {
	params, _, _, err := parseHash(encoded)
	return err != nil || params != currentParams
}

func GenerateSecureToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func CompareTokenHash(token, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(hash)) == 1
}
