// Package mfa generates and checks TOTP secrets and recovery codes.
package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	period           = 30
	skew             = 1
	recoveryCodeSize = 4 // bytes, 8 hex chars
)

var validateOpts = totp.ValidateOpts{
	Period:    period,
	Skew:      skew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Key is a freshly generated TOTP secret
type Key struct {
	Secret string
	URI    string
}

// Generate creates a secret whose provisioning URI names issuer and account
func Generate(issuer, account string) (Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Key{}, fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return Key{Secret: key.Secret(), URI: key.URL()}, nil
}

// Validate accepts the code of the current period and one period either side
func Validate(code, secret string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != 6 || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, validateOpts)
	return err == nil && ok
}

// Code returns the TOTP code for at
func Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, validateOpts)
}

// NewRecoveryCodes returns n upper-case hex codes
func NewRecoveryCodes(n int) ([]string, error) {
	codes := make([]string, n)
	for i := range codes {
		b := make([]byte, recoveryCodeSize)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to generate recovery code: %w", err)
		}
		codes[i] = strings.ToUpper(hex.EncodeToString(b))
	}
	return codes, nil
}

// NormalizeRecoveryCode strips dashes and spaces and upper-cases
func NormalizeRecoveryCode(code string) string {
	code = strings.NewReplacer("-", "", " ", "").Replace(code)
	return strings.ToUpper(strings.TrimSpace(code))
}

// HashRecoveryCode is the stored form of a recovery code
func HashRecoveryCode(code string) string {
	sum := sha256.Sum256([]byte(NormalizeRecoveryCode(code)))
	return hex.EncodeToString(sum[:])
}

func HashRecoveryCodes(codes []string) []string {
	hashed := make([]string, len(codes))
	for i, c := range codes {
		hashed[i] = HashRecoveryCode(c)
	}
	return hashed
}

// ConsumeRecoveryCode finds code among hashed and returns the remaining hashes
func ConsumeRecoveryCode(hashed []string, code string) ([]string, bool) {
	target := []byte(HashRecoveryCode(code))
	for i, h := range hashed {
		if subtle.ConstantTimeCompare([]byte(h), target) == 1 {
			remaining := make([]string, 0, len(hashed)-1)
			remaining = append(remaining, hashed[:i]...)
			remaining = append(remaining, hashed[i+1:]...)
			return remaining, true
		}
	}
	return hashed, false
}
