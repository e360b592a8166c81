package icsserver

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/argon2"
)

func encodeArgon2(password string, salt []byte, memory, time uint32, parallelism uint8, keyLen uint32) string {
	hash := argon2.IDKey([]byte(password), salt, time, memory, parallelism, keyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, time, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func TestVerifyPasswordPlaintextMatch(t *testing.T) {
	assert.True(t, verifyPassword("hunter2", "hunter2", false))
	assert.False(t, verifyPassword("hunter2", "wrong", false))
}

func TestVerifyPasswordArgon2Match(t *testing.T) {
	salt := []byte("0123456789abcdef")
	encoded := encodeArgon2("hunter2", salt, 64*1024, 3, 2, 32)

	assert.True(t, verifyPassword(encoded, "hunter2", true))
	assert.False(t, verifyPassword(encoded, "wrong", true))
}

func TestVerifyPasswordMalformedHashRejected(t *testing.T) {
	assert.False(t, verifyPassword("not-a-hash", "anything", true))
}
