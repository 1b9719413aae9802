package types

import (
	"encoding/json"
	"log/slog"
)

const redactedPlaceholder = "[REDACTED]"

// SecretString holds a sensitive value, such as the Redis password, and
// shows the placeholder anywhere it is printed, logged, or marshaled. The
// raw value only comes out of Value.
type SecretString struct {
	value string
}

func NewSecretString(value string) SecretString { return SecretString{value: value} }

// Value returns the wrapped secret.
func (s SecretString) Value() string { return s.value }

func (s SecretString) IsEmpty() bool { return s.value == "" }

func (s SecretString) String() string {
	if s.value != "" {
		return redactedPlaceholder
	}
	return ""
}

// LogValue implements slog.LogValuer so the secret stays redacted even when
// the struct is logged as a field.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SecretString) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	s.value = value
	return nil
}
