package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"eventregistration/internal/domain"
)

// Code prefixes and sizes.
const (
	ConfirmationCodePrefix = "REG-"
	AccessCodePrefix       = "GRP-"
	registrationCodeLength = 8
	eventCodeLength        = 4
	DefaultCodeMaxAttempts = 5
)

// Uppercase letters and digits without the easily confused 0, O, 1, I and L.
var registrationCodeAlphabet = []rune("ABCDEFGHJKMNPQRSTUVWXYZ23456789")

var eventCodeAlphabet = []rune("abcdefghijklmnopqrstuvwxyz0123456789")

// CodeIssuer produces codes that are not yet taken according to Exists.
type CodeIssuer struct {
	Generate    func() (string, error)
	Exists      func(ctx context.Context, code string) (bool, error)
	MaxAttempts int
}

// NewRegistrationCodeIssuer returns an issuer of 8-character registration codes checked against exists.
func NewRegistrationCodeIssuer(exists func(ctx context.Context, code string) (bool, error), maxAttempts int) *CodeIssuer {
	return &CodeIssuer{
		Generate:    func() (string, error) { return randomCode(registrationCodeAlphabet, registrationCodeLength) },
		Exists:      exists,
		MaxAttempts: maxAttempts,
	}
}

// NewEventCodeIssuer returns an issuer of 4-character lowercase event codes.
func NewEventCodeIssuer(exists func(ctx context.Context, code string) (bool, error), maxAttempts int) *CodeIssuer {
	return &CodeIssuer{
		Generate:    func() (string, error) { return randomCode(eventCodeAlphabet, eventCodeLength) },
		Exists:      exists,
		MaxAttempts: maxAttempts,
	}
}

// Issue returns prefix + a generated code that Exists reports as unused. After MaxAttempts
// taken candidates it fails with domain.ErrCodeGenerationExhausted instead of returning a
// possibly colliding code. The storage unique constraint remains the final guard.
func (i *CodeIssuer) Issue(ctx context.Context, prefix string) (string, error) {
	attempts := i.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultCodeMaxAttempts
	}
	for n := 0; n < attempts; n++ {
		raw, err := i.Generate()
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		code := prefix + raw
		taken, err := i.Exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", domain.ErrCodeGenerationExhausted, attempts)
}

func randomCode(alphabet []rune, length int) (string, error) {
	b := make([]rune, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}
