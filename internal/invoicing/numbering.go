package invoicing

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// DefaultNumberPrefix prefixes generated invoice numbers.
const DefaultNumberPrefix = "INV-"

var numberSpace = big.NewInt(999999)

// NumberGenerator proposes invoice numbers. Uniqueness is enforced by the store.
type NumberGenerator interface {
	Next() (string, error)
}

// NumberGeneratorFunc adapts a function to NumberGenerator.
type NumberGeneratorFunc func() (string, error)

func (f NumberGeneratorFunc) Next() (string, error) {
	return f()
}

// RandomNumberGenerator yields Prefix followed by six zero-padded digits in 000001..999999.
type RandomNumberGenerator struct {
	Prefix string
	Reader io.Reader
}

func (g RandomNumberGenerator) Next() (string, error) {
	reader := g.Reader
	if reader == nil {
		reader = rand.Reader
	}
	prefix := g.Prefix
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	n, err := rand.Int(reader, numberSpace)
	if err != nil {
		return "", fmt.Errorf("invoicing: generate number: %w", err)
	}
	return fmt.Sprintf("%s%06d", prefix, n.Int64()+1), nil
}
