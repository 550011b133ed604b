package codegen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// DefaultMaxAttempts bounds how many candidates Next proposes before giving up.
const DefaultMaxAttempts = 8

const suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrExhausted is returned when every candidate code is already taken.
var ErrExhausted = errors.New("code generation attempts exhausted")

// Template describes a human-readable code: Prefix followed by a zero-padded
// sequence of Width digits. Collisions fall back to Separator plus SuffixLen
// random characters.
type Template struct {
	Prefix    string
	Width     int
	Separator string
	SuffixLen int
}

// Format renders the code for sequence number seq.
func (t Template) Format(seq int) string {
	return fmt.Sprintf("%s%0*d", t.Prefix, t.Width, seq)
}

// Sequence extracts the sequence number from a code rendered by Format,
// ignoring any fallback suffix.
func (t Template) Sequence(code string) (int, bool) {
	rest, ok := strings.CutPrefix(code, t.Prefix)
	if !ok || rest == "" {
		return 0, false
	}
	if t.Separator != "" {
		if i := strings.Index(rest, t.Separator); i >= 0 {
			rest = rest[:i]
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Source is the store the generator proposes codes against. It only reads;
// uniqueness is enforced when the caller inserts the code.
type Source interface {
	// LastCode returns the most recently assigned code under prefix, or ""
	// when none exists.
	LastCode(ctx context.Context, prefix string) (string, error)
	Exists(ctx context.Context, code string) (bool, error)
}

// Generator proposes codes and serializes generate+persist through a Locker.
type Generator struct {
	locker      Locker
	maxAttempts int
	suffix      func(n int) string
}

type Option func(*Generator)

func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithSuffixFunc replaces the random suffix source.
func WithSuffixFunc(fn func(n int) string) Option {
	return func(g *Generator) {
		g.suffix = fn
	}
}

// New creates a Generator. A nil locker falls back to a LocalLocker.
func New(locker Locker, opts ...Option) *Generator {
	if locker == nil {
		locker = NewLocalLocker()
	}
	g := &Generator{
		locker:      locker,
		maxAttempts: DefaultMaxAttempts,
		suffix:      randomSuffix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next proposes the next free code for tmpl. The first candidate is the
// sequence after src's last code; later candidates carry a random suffix.
func (g *Generator) Next(ctx context.Context, tmpl Template, src Source) (string, error) {
	last, err := src.LastCode(ctx, tmpl.Prefix)
	if err != nil {
		return "", fmt.Errorf("read last code for %q: %w", tmpl.Prefix, err)
	}

	seq := 1
	if n, ok := tmpl.Sequence(last); ok {
		seq = n + 1
	}
	base := tmpl.Format(seq)

	candidate := base
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			candidate = base + tmpl.Separator + g.suffix(tmpl.SuffixLen)
		}
		exists, err := src.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check code %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// Do runs fn while holding the lock for key. Callers generate and persist a
// code inside fn so two requests never propose the same sequence.
func (g *Generator) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	unlock, err := g.locker.Lock(ctx, "codegen:"+key)
	if err != nil {
		return fmt.Errorf("acquire code lock %s: %w", key, err)
	}
	defer unlock()
	return fn(ctx)
}

func randomSuffix(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(suffixAlphabet[rand.IntN(len(suffixAlphabet))])
	}
	return b.String()
}
