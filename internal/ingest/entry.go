package ingest

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrUnsupportedMethod is returned by ParseMethod for verbs outside the
// replayable set.
var ErrUnsupportedMethod = errors.New("unsupported HTTP method")

// Method is one of the HTTP verbs that can be replayed.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodGet
	MethodPost
	MethodHead
	MethodPut
	MethodOptions
	MethodPatch
	MethodDelete
)

var methodNames = [...]string{
	MethodUnknown: "UNKNOWN",
	MethodGet:     "GET",
	MethodPost:    "POST",
	MethodHead:    "HEAD",
	MethodPut:     "PUT",
	MethodOptions: "OPTIONS",
	MethodPatch:   "PATCH",
	MethodDelete:  "DELETE",
}

// ParseMethod maps a request-line verb to a Method. Logs write "UNKNOWN"
// (and sometimes "UNKOWN") for requests they could not decode; those, like
// every other verb outside the set, are rejected.
func ParseMethod(s string) (Method, error) {
	for m := MethodGet; m <= MethodDelete; m++ {
		if methodNames[m] == s {
			return m, nil
		}
	}
	return MethodUnknown, fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return methodNames[MethodUnknown]
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Entry is one request to replay.
type Entry struct {
	Line         int           `json:"line"` // 1-based line number in the source log
	Timestamp    time.Time     `json:"timestamp"`
	Method       Method        `json:"method"`
	Path         string        `json:"path"`
	URL          string        `json:"url"`
	Status       *int          `json:"status,omitempty"`
	ResponseTime *float64      `json:"response_time,omitempty"` // seconds
	Referer      string        `json:"referer,omitempty"`
	UserAgent    string        `json:"user_agent,omitempty"`
	Delay        time.Duration `json:"delay"` // wait after the previous dispatch
}

var urlEscaper = strings.NewReplacer(
	" ", "%20",
	"<", "%3C",
	">", "%3E",
	`"`, "%22",
	"#", "%23",
	"{", "%7B",
	"}", "%7D",
	"|", "%7C",
	`\`, "%5C",
	"^", "%5E",
	"~", "%7E",
	"[", "%5B",
	"]", "%5D",
	"`", "%60",
)

// BuildURL joins host and path into the replay target. A host without a
// scheme gets scheme prepended. Absolute-form request targets
// ("http://origin/x") keep only their path and query.
func BuildURL(scheme, host, path string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", errors.New("empty host")
	}
	if !strings.Contains(host, "://") {
		host = scheme + "://" + host
	}

	if strings.Contains(path, "://") {
		if u, err := url.Parse(path); err == nil && u.Host != "" {
			path = u.RequestURI()
		}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	raw := strings.TrimRight(host, "/") + path

	u, err := url.Parse(raw)
	if err != nil {
		raw = escapeStrayPercents(urlEscaper.Replace(raw))
		if u, err = url.Parse(raw); err != nil {
			return "", fmt.Errorf("parsing target url: %w", err)
		}
	}
	if u.Host == "" {
		return "", fmt.Errorf("target url %q has no host", raw)
	}
	return raw, nil
}

// escapeStrayPercents rewrites every '%' that does not start a valid escape
// sequence as "%25".
func escapeStrayPercents(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && (i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
