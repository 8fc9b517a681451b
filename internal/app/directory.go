package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"trivia-engine/internal/domain"
)

const (
	codeMin = 100000
	codeMax = 999999

	defaultCodeAttempts = 32
)

// Directory issues join codes and resolves them back to sessions.
type Directory struct {
	store       Store
	codes       CodeRegistry
	maxAttempts int
	random      io.Reader
	log         *slog.Logger
}

type DirectoryOption func(*Directory)

// WithMaxAttempts bounds how many collisions Allocate tolerates before giving up.
func WithMaxAttempts(n int) DirectoryOption {
	return func(d *Directory) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithRandom replaces the entropy source, e.g. to force collisions in tests.
func WithRandom(r io.Reader) DirectoryOption {
	return func(d *Directory) {
		d.random = r
	}
}

func WithDirectoryLogger(l *slog.Logger) DirectoryOption {
	return func(d *Directory) {
		d.log = l
	}
}

func NewDirectory(store Store, codes CodeRegistry, opts ...DirectoryOption) *Directory {
	d := &Directory{
		store:       store,
		codes:       codes,
		maxAttempts: defaultCodeAttempts,
		random:      rand.Reader,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Allocate claims a six digit code that no active session holds.
func (d *Directory) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		code, err := d.generate()
		if err != nil {
			return "", err
		}

		ok, err := d.codes.Claim(ctx, code)
		if err != nil {
			return "", fmt.Errorf("claim join code: %w", err)
		}
		if !ok {
			d.log.DebugContext(ctx, "directory: join code collision", "code", code, "attempt", attempt)
			continue
		}

		// The registry may have lost state across restarts; the store is the source of truth.
		held, err := d.heldByActiveSession(ctx, code)
		if err != nil {
			_ = d.codes.Release(ctx, code)
			return "", err
		}
		if held {
			d.log.DebugContext(ctx, "directory: join code held by stored session", "code", code, "attempt", attempt)
			continue
		}
		return code, nil
	}
	return "", domain.ErrCodeSpaceExhausted
}

// Release frees code for reuse once its session is terminal.
func (d *Directory) Release(ctx context.Context, code string) {
	if err := d.codes.Release(ctx, code); err != nil {
		d.log.WarnContext(ctx, "directory: release join code", "code", code, "error", err)
	}
}

// Resolve returns the latest session issued code.
func (d *Directory) Resolve(ctx context.Context, code string) (domain.Session, error) {
	return d.store.FindSessionByCode(ctx, code)
}

func (d *Directory) heldByActiveSession(ctx context.Context, code string) (bool, error) {
	s, err := d.store.FindSessionByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup join code: %w", err)
	}
	return !s.Status.Terminal(), nil
}

func (d *Directory) generate() (string, error) {
	n, err := rand.Int(d.random, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate join code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
