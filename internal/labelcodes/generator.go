// Package labelcodes produces short, visually unambiguous label codes and
// checks them for uniqueness against every label ever created.
package labelcodes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet excludes I, O, 0 and 1 so printed codes cannot be misread.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultPrefix      = "BTL"
	DefaultLength      = 8
	DefaultMaxAttempts = 100
)

// ErrCodeSpaceExhausted signals that no free code was found within the attempt bound.
var ErrCodeSpaceExhausted = errors.New("label code space exhausted")

// ExistsFunc reports whether a code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// SuffixSource returns a random suffix of the requested length.
type SuffixSource func(length int) (string, error)

// Options configures a Generator. Zero values fall back to the defaults.
type Options struct {
	Prefix      string
	Length      int
	MaxAttempts int
	Source      SuffixSource
	// OnCollision is invoked for every candidate rejected as taken.
	OnCollision func(code string)
}

// Generator builds label codes of the form PREFIX-SUFFIX.
type Generator struct {
	prefix      string
	length      int
	maxAttempts int
	source      SuffixSource
	onCollision func(code string)
}

// NewGenerator validates the options and returns a Generator.
func NewGenerator(opts Options) (*Generator, error) {
	prefix := strings.ToUpper(strings.TrimSpace(opts.Prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if strings.Contains(prefix, "-") {
		return nil, fmt.Errorf("code prefix %q must not contain '-'", prefix)
	}
	length := opts.Length
	if length == 0 {
		length = DefaultLength
	}
	if length < 4 {
		return nil, fmt.Errorf("code length must be at least 4, got %d", length)
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if maxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", maxAttempts)
	}
	source := opts.Source
	if source == nil {
		source = cryptoSuffix
	}
	return &Generator{
		prefix:      prefix,
		length:      length,
		maxAttempts: maxAttempts,
		source:      source,
		onCollision: opts.OnCollision,
	}, nil
}

// MaxAttempts returns the per-code attempt bound.
func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// NewCode returns a fresh candidate. It is not guaranteed to be unique.
func (g *Generator) NewCode() (string, error) {
	suffix, err := g.source(g.length)
	if err != nil {
		return "", fmt.Errorf("generate code suffix: %w", err)
	}
	return g.prefix + "-" + suffix, nil
}

// NewUniqueCode draws candidates until exists reports one as free.
func (g *Generator) NewUniqueCode(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.uniqueCode(ctx, exists, nil)
}

// NewBatchCodes returns n codes that are distinct from each other and from
// every existing code. Exhausting the attempt bound on any code fails the batch.
func (g *Generator) NewBatchCodes(ctx context.Context, n int, exists ExistsFunc) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", n)
	}
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for len(codes) < n {
		code, err := g.uniqueCode(ctx, exists, seen)
		if err != nil {
			return nil, err
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func (g *Generator) uniqueCode(ctx context.Context, exists ExistsFunc, reserved map[string]struct{}) (string, error) {
	if exists == nil {
		return "", errors.New("exists check required")
	}
	var found string
	err := Retry(ctx, g.maxAttempts, func(ctx context.Context, _ int) (bool, error) {
		candidate, err := g.NewCode()
		if err != nil {
			return false, err
		}
		if _, dup := reserved[candidate]; dup {
			g.collided(candidate)
			return false, nil
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return false, fmt.Errorf("check code %s: %w", candidate, err)
		}
		if taken {
			g.collided(candidate)
			return false, nil
		}
		found = candidate
		return true, nil
	})
	if errors.Is(err, ErrAttemptsExhausted) {
		return "", fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, g.maxAttempts)
	}
	if err != nil {
		return "", err
	}
	return found, nil
}

func (g *Generator) collided(code string) {
	if g.onCollision != nil {
		g.onCollision(code)
	}
}

// Normalize canonicalises scanner input before lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the shape produced by this generator.
func (g *Generator) Valid(code string) bool {
	prefix, suffix, ok := strings.Cut(code, "-")
	if !ok || prefix != g.prefix || len(suffix) != g.length {
		return false
	}
	for _, r := range suffix {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

func cryptoSuffix(length int) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// WithSource returns a copy of g that draws suffixes from src.
func (g *Generator) WithSource(src SuffixSource) *Generator {
	clone := *g
	if src != nil {
		clone.source = src
	}
	return &clone
}
