package config

import (
	"fmt"
	"os"
	"time"
)

// Duration is a time.Duration that decodes from strings such as "90s" in
// YAML files and environment variables.
type Duration time.Duration

// UnmarshalText parses a Go duration string. Negative values are rejected.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", text)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return d.Duration().String() }

// Secret holds an API key or token. Its String and GoString forms are
// redacted so a Config can be printed or logged as a whole; Value returns
// the raw text for the client that needs it.
type Secret string

const redactedSecret = "[REDACTED]"

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redactedSecret
}

func (s Secret) GoString() string { return s.String() }

func (s Secret) Value() string { return string(s) }

func (s Secret) IsSet() bool { return s != "" }

// OrEnv falls back to the named environment variable when s is empty.
// Keys such as GROQ_API_KEY and HF_TOKEN do not follow the SECTION_FIELD
// naming and are resolved this way.
func (s Secret) OrEnv(key string) Secret {
	if s.IsSet() {
		return s
	}
	return Secret(os.Getenv(key))
}

// UnmarshalText accepts the raw secret.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
