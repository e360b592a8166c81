package icsserver

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// verifyPassword compares a Basic-Auth credential against the configured
// password, which is either stored as plaintext or as an encoded Argon2id
// hash ($argon2id$v=19$m=...,t=...,p=...$salt$hash, the format produced by
// the reference Argon2 CLI and golang.org/x/crypto/argon2 callers).
func verifyPassword(stored, provided string, storedIsHash bool) bool {
	if !storedIsHash {
		return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
	}

	hash, err := parseArgon2Hash(stored)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(provided), hash.salt, hash.time, hash.memory, hash.parallelism, uint32(len(hash.hash)))
	return subtle.ConstantTimeCompare(candidate, hash.hash) == 1
}

type argon2Hash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parseArgon2Hash(encoded string) (*argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, fmt.Errorf("unrecognized hash format")
	}

	var memory, time uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &parallelism); err != nil {
		return nil, fmt.Errorf("parse argon2 params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("decode hash: %w", err)
	}

	return &argon2Hash{memory: memory, time: time, parallelism: parallelism, salt: salt, hash: hash}, nil
}
