package testfixtures

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator yields prefix-1, prefix-2, ... and is safe for concurrent use.
type IDGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewIDGenerator uses "id" when prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.counter.Add(1))
}

// NextFunc exposes Next for injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued reports how many identifiers were handed out.
func (g *IDGenerator) Issued() uint64 {
	return g.counter.Load()
}
