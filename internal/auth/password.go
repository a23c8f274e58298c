package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// KDF parameters. Changing any of them invalidates every stored credential.
const (
	PBKDF2Iterations = 10000
	KeySize          = 32
	SaltSize         = 16
)

// Credential is the persisted form of a student password. The salt is a hex
// string and is fed to the KDF as its text bytes.
type Credential struct {
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// HashPassword derives a credential for password. An empty salt is replaced
// by a fresh random one; the same salt always yields the same hash.
func HashPassword(password, salt string) (Credential, error) {
	if salt == "" {
		b := make([]byte, SaltSize)
		if _, err := rand.Read(b); err != nil {
			return Credential{}, fmt.Errorf("generate salt: %w", err)
		}
		salt = hex.EncodeToString(b)
	}
	key := derive(password, salt)
	return Credential{Salt: salt, Hash: hex.EncodeToString(key)}, nil
}

// VerifyPassword reports whether password matches cred. It fails closed on a
// missing or malformed credential and compares digests in constant time.
func VerifyPassword(password string, cred *Credential) bool {
	if cred == nil || cred.Salt == "" || cred.Hash == "" {
		return false
	}
	want, err := hex.DecodeString(cred.Hash)
	if err != nil {
		return false
	}
	got := derive(password, cred.Salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func derive(password, salt string) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), PBKDF2Iterations, KeySize, sha256.New)
}
