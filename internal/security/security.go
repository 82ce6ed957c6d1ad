// Package security generates one-time login codes.
package security

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// CodeSpace is the exclusive upper bound of generated codes (six digits).
const CodeSpace = 1_000_000

// Generator draws codes uniformly from [0, CodeSpace).
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

func (g *Generator) GenerateCode() (int, error) {
	n, err := rand.Int(g.rand, big.NewInt(CodeSpace))
	if err != nil {
		return 0, fmt.Errorf("generate code: %w", err)
	}
	return int(n.Int64()), nil
}
