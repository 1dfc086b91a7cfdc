package authpw

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const saltSize = 16

// HashPassword returns a "{saltBase64}.{hashBase64}" record where hash is
// HMAC-SHA256 keyed by a fresh random salt over the UTF-8 password.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return encodeRecord(salt, digest(salt, password)), nil
}

// VerifyPassword recomputes the digest with the record's salt and compares
// in constant time. Malformed records never verify.
func VerifyPassword(password, record string) bool {
	saltPart, hashPart, ok := strings.Cut(record, ".")
	if !ok || saltPart == "" || hashPart == "" {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil || len(salt) == 0 {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(hashPart)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, digest(salt, password))
}

func digest(salt []byte, password string) []byte {
	mac := hmac.New(sha256.New, salt)
	_, _ = mac.Write([]byte(password))
	return mac.Sum(nil)
}

func encodeRecord(salt, hash []byte) string {
	return base64.StdEncoding.EncodeToString(salt) + "." + base64.StdEncoding.EncodeToString(hash)
}
