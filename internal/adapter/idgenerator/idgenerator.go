// Package idgenerator contains the default [domain.IDGenerator]
// implementation, producing UUID application identifiers.
package idgenerator

import (
	"crypto/rand"
	"io"

	"github.com/google/uuid"
	"github.com/seamdb/seam/domain"
)

// IDGenerator implements [domain.IDGenerator].
type IDGenerator struct {
	reader io.Reader
}

// Option configures the generator.
type Option func(*IDGenerator)

// WithRandomReader sets the entropy source, useful for deterministic tests.
func WithRandomReader(r io.Reader) Option {
	return func(g *IDGenerator) { g.reader = r }
}

// NewIDGenerator returns a new implementation of [domain.IDGenerator].
func NewIDGenerator(opts ...Option) domain.IDGenerator {
	g := IDGenerator{reader: rand.Reader}
	for _, opt := range opts {
		opt(&g)
	}
	return &g
}

// Generate implements [domain.IDGenerator].
func (g *IDGenerator) Generate() (string, error) {
	id, err := uuid.NewRandomFromReader(g.reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
