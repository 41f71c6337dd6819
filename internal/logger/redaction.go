package logger

import (
	"io"
	"regexp"
	"sync"
)

const redactedMarker = "[REDACTED]"

// redactionRule masks either the whole match or, for keyed rules, only what follows the key
type redactionRule struct {
	re      *regexp.Regexp
	replace string
}

func wholeMatch(expr string) redactionRule {
	return redactionRule{re: regexp.MustCompile(expr), replace: redactedMarker}
}

// keyed matches `key: value`, `key=value` and `"key":"value"`, keeping the key visible
func keyed(key, value string) redactionRule {
	expr := `(?i)("?(?:` + key + `)"?\s*[:=]\s*"?)` + value
	return redactionRule{re: regexp.MustCompile(expr), replace: "${1}" + redactedMarker}
}

// Redactor masks credentials in log lines
type Redactor struct {
	mu    sync.RWMutex
	rules []redactionRule
}

// NewRedactor creates a redactor with the built-in credential rules
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactionRule{
			keyed(`api[_-]?key`, `[^\s",}]+`),
			keyed(`password|passwd|pwd`, `[^\s",}]+`),
			keyed(`secret`, `[^\s",}]+`),
			keyed(`token`, `[a-zA-Z0-9._-]{20,}`),
			{re: regexp.MustCompile(`(Bearer\s+)[a-zA-Z0-9._~+/=-]+`), replace: "${1}" + redactedMarker},
			{re: regexp.MustCompile(`(Basic\s+)[a-zA-Z0-9+/=]{8,}`), replace: "${1}" + redactedMarker},
			wholeMatch(`sk-[a-zA-Z0-9_-]{20,}`),
			wholeMatch(`AKIA[0-9A-Z]{16}`),
		},
	}
}

// AddPattern masks every match of pattern
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.rules = append(r.rules, redactionRule{re: re, replace: redactedMarker})
	r.mu.Unlock()
	return nil
}

// Redact applies every rule to s
func (r *Redactor) Redact(s string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, rule.replace)
	}
	return s
}

// Wrap returns a writer that redacts each line before passing it to w
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return redactingWriter{out: w, redactor: r}
}

type redactingWriter struct {
	out      io.Writer
	redactor *Redactor
}

// Write reports len(p) on success; zerolog treats a shorter count as a failed write
func (w redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.out, w.redactor.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
