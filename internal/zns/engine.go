// Package zns implements ZNS name registration: plain-text inscriptions
// ending in a recognized suffix claim a human-readable name on a
// first-writer-wins basis.
package zns

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/zordprotocol/zord/internal/store"
)

// ErrInvalidName reports a name that fails the suffix/shape rules. A
// validation failure: log and move on, never fatal.
var ErrInvalidName = errors.New("invalid zns name")

const maxNameLength = 253

var validSuffixes = []string{".zec", ".zcash"}

const plainText = "text/plain"

// Engine applies ZNS registrations against the indexer's store.
type Engine struct {
	store *store.Store
}

// New builds a ZNS engine backed by s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Process registers a name if content is a plain-text inscription whose
// body is a valid name. Any other content type is silently ignored: ZNS
// only ever reads text/plain inscriptions.
func (e *Engine) Process(inscriptionID, owner, content, contentType string) error {
	if contentType != plainText {
		return nil
	}

	name := strings.TrimSpace(content)
	if err := validateName(name); err != nil {
		return err
	}

	nameLower := strings.ToLower(name)
	_, found, err := e.store.GetName(nameLower)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %q already registered", ErrInvalidName, name)
	}

	return e.store.RegisterName(nameLower, &store.NameRecord{
		Name:          name,
		NameLower:     nameLower,
		Owner:         owner,
		InscriptionID: inscriptionID,
	})
}

// validateName enforces the suffix, whitespace, and length rules: the name
// must end in one of validSuffixes, carry no internal whitespace, have a
// non-empty base (the part before the suffix), and fit within
// maxNameLength.
func validateName(name string) error {
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidName, name, maxNameLength)
	}

	suffix, ok := matchSuffix(name)
	if !ok {
		return fmt.Errorf("%w: %q has no recognized suffix", ErrInvalidName, name)
	}

	base := strings.TrimSuffix(name, suffix)
	if base == "" {
		return fmt.Errorf("%w: %q has an empty base name", ErrInvalidName, name)
	}

	for _, r := range name {
		if unicode.IsSpace(r) {
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
		}
	}

	return nil
}

func matchSuffix(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, suffix := range validSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return name[len(name)-len(suffix):], true
		}
	}
	return "", false
}
