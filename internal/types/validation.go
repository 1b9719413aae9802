package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyValidationConfig controls validation of the dataset and identifier
// components cache keys are derived from. The zero value rejects everything
// suspicious; each field opens one hole.
type KeyValidationConfig struct {
	ReservedPatterns  []string
	MaxComponentLen   int
	AllowEmpty        bool
	AllowControlChars bool
	AllowWhitespace   bool
}

// DefaultKeyValidationConfig returns the strict production rules.
func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{MaxComponentLen: 512}
}

// KeyValidator checks key components against one set of rules.
type KeyValidator struct {
	config KeyValidationConfig
}

func NewKeyValidator(config KeyValidationConfig) *KeyValidator {
	return &KeyValidator{config: config}
}

// Validate checks one key component (a dataset type or an identifier).
// Every rejection wraps ErrInvalidKey.
func (v *KeyValidator) Validate(component string) error {
	cfg := &v.config

	if component == "" {
		if cfg.AllowEmpty {
			return nil
		}
		return fmt.Errorf("%w: component cannot be empty", ErrInvalidKey)
	}
	if cfg.MaxComponentLen > 0 && len(component) > cfg.MaxComponentLen {
		return fmt.Errorf("%w: component length %d exceeds maximum %d bytes",
			ErrInvalidKey, len(component), cfg.MaxComponentLen)
	}
	if !utf8.ValidString(component) {
		return fmt.Errorf("%w: component contains invalid UTF-8", ErrInvalidKey)
	}

	if !cfg.AllowControlChars || !cfg.AllowWhitespace {
		for i, r := range component {
			if !cfg.AllowControlChars && (r < 0x20 || r == 0x7f) {
				return fmt.Errorf("%w: component has a control character at byte %d", ErrInvalidKey, i)
			}
			if !cfg.AllowWhitespace && unicode.IsSpace(r) {
				return fmt.Errorf("%w: component has whitespace at byte %d", ErrInvalidKey, i)
			}
		}
	}

	for _, pattern := range cfg.ReservedPatterns {
		if strings.Contains(component, pattern) {
			return fmt.Errorf("%w: component contains reserved pattern %q", ErrInvalidKey, pattern)
		}
	}

	return nil
}

// DefaultKeyValidator applies DefaultKeyValidationConfig.
var DefaultKeyValidator = NewKeyValidator(DefaultKeyValidationConfig())

// ValidateComponent checks a component against the package defaults.
func ValidateComponent(component string) error {
	return DefaultKeyValidator.Validate(component)
}

// IsInvalidKey reports whether err came from key component validation.
func IsInvalidKey(err error) bool { return errors.Is(err, ErrInvalidKey) }
