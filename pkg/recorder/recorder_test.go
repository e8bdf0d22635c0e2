package recorder

import (
	"bytes"
	"strings"
	"testing"
)

func TestRecorderRoundtrip(t *testing.T) {
	format, err := ParseFormat("json")
	if err != nil {
		t.Fatalf("ParseFormat() failed: %v", err)
	}
	var buf bytes.Buffer
	rec := New(10, NewWriterSink(&buf, format))

	if err := rec.Record(Result{Status: 200, Method: "GET", Path: "/api/profile"}); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if rec.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rec.Len())
	}
	if !strings.Contains(buf.String(), `"path":"/api/profile"`) {
		t.Fatalf("sink output = %q", buf.String())
	}
}
