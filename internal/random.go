package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
)

// SessionTokenBytes is the entropy of a session token. 32 bytes keeps the
// token comfortably above the 128-bit floor required for unguessability.
const SessionTokenBytes = 32

var codeSpace = big.NewInt(1000000)

// NewSessionToken returns a fresh opaque session token as a hex string.
func NewSessionToken() (string, error) {
	var raw [SessionTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// NewCode returns a uniformly random 6-digit verification code.
//
// The code is fixed-width and zero-padded: every one of the 1,000,000
// strings "000000".."999999" is equally likely. Callers must not strip
// leading zeros.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	code := strconv.FormatInt(n.Int64(), 10)
	for len(code) < 6 {
		code = "0" + code
	}
	if len(code) != 6 {
		return "", errors.New("invalid code length")
	}
	return code, nil
}
