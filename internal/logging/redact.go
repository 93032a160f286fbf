package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// redactor hides values under sensitive keys and rewrites token shaped
// substrings anywhere in a string value or the message.
type redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	r := &redactor{keys: make(map[string]struct{}, len(cfg.Fields))}
	for _, k := range cfg.Fields {
		r.keys[strings.ToLower(k)] = struct{}{}
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

func (r *redactor) sensitive(key string) bool {
	_, ok := r.keys[strings.ToLower(key)]
	return ok
}

func (r *redactor) scrub(s string) string {
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, redacted)
	}
	return s
}

// redactingEncoder applies a redactor to every field it encodes, including
// fields added through With.
type redactingEncoder struct {
	zapcore.Encoder
	r *redactor
}

// newRedactingEncoder wraps base, or returns it unchanged when redaction
// is disabled.
func newRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (zapcore.Encoder, error) {
	if !cfg.Enabled {
		return base, nil
	}
	r, err := newRedactor(cfg)
	if err != nil {
		return nil, err
	}
	return &redactingEncoder{Encoder: base, r: r}, nil
}

func (e *redactingEncoder) AddString(key, val string) {
	if e.r.sensitive(key) {
		val = redacted
	}
	e.Encoder.AddString(key, e.r.scrub(val))
}

func (e *redactingEncoder) AddByteString(key string, val []byte) {
	if e.r.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return
	}
	e.Encoder.AddString(key, e.r.scrub(string(val)))
}

func (e *redactingEncoder) AddReflected(key string, val interface{}) error {
	if e.r.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *redactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.r.sensitive(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *redactingEncoder) Clone() zapcore.Encoder {
	return &redactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
}

// EncodeEntry adds the call's fields through the redacting methods, then
// lets the wrapped encoder write the line.
func (e *redactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	enc := e.Clone().(*redactingEncoder)
	for _, f := range fields {
		f.AddTo(enc)
	}
	ent.Message = e.r.scrub(ent.Message)
	return enc.Encoder.EncodeEntry(ent, nil)
}
