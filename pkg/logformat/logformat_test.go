package logformat

import "testing"

func TestCompileAndSplit(t *testing.T) {
	spec, err := Compile(`"[$requestTime]" "$requestUrl" "$statusCode"`)
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	cols, err := Split(`[10/Oct/2023:13:55:36 +0000] "GET /health HTTP/1.1" "200"`)
	if err != nil {
		t.Fatalf("Split() failed: %v", err)
	}
	if len(cols) != spec.Columns() {
		t.Fatalf("columns = %d, want %d", len(cols), spec.Columns())
	}
}

func TestLayout(t *testing.T) {
	layout, err := Layout(DefaultTimePattern)
	if err != nil {
		t.Fatalf("Layout() failed: %v", err)
	}
	if layout != "02/Jan/2006:15:04:05 -0700" {
		t.Fatalf("Layout() = %q", layout)
	}
}
