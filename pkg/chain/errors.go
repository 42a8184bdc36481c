package chain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested parent or node does not exist.
var ErrNotFound = errors.New("not found")

// CorruptionError reports a violated chain invariant. It is never
// repaired automatically; the fields locate the break for offline repair.
type CorruptionError struct {
	Parent string
	Node   string
	Reason string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("chain corruption (parent %s, node %s): %s", orNone(e.Parent), orNone(e.Node), e.Reason)
}

// ValidationError rejects caller input before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Reason)
}

// PartialWriteError means a multi-step mutation stopped after its first
// write. The chain may be inconsistent until repaired.
type PartialWriteError struct {
	Parent string
	Node   string
	Step   string
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write (parent %s, node %s): %s matched no record", orNone(e.Parent), orNone(e.Node), e.Step)
}

// IsCorruption reports whether err carries a CorruptionError.
func IsCorruption(err error) bool {
	var c *CorruptionError
	return errors.As(err, &c)
}

// IsPartialWrite reports whether err carries a PartialWriteError.
func IsPartialWrite(err error) bool {
	var p *PartialWriteError
	return errors.As(err, &p)
}

// Annotate fills in the parent of a corruption or partial write error
// raised below the level that knows it.
func Annotate(err error, parent any) error {
	var c *CorruptionError
	if errors.As(err, &c) && c.Parent == "" {
		c.Parent = fmt.Sprint(parent)
	}
	var p *PartialWriteError
	if errors.As(err, &p) && p.Parent == "" {
		p.Parent = fmt.Sprint(parent)
	}
	return err
}

func corrupt(node any, format string, args ...any) *CorruptionError {
	c := &CorruptionError{Reason: fmt.Sprintf(format, args...)}
	if node != nil {
		c.Node = fmt.Sprint(node)
	}
	return c
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
