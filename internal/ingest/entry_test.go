package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"GET", "POST", "HEAD", "PUT", "OPTIONS", "PATCH", "DELETE"} {
		m, err := ParseMethod(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, m.String())
	}

	for _, name := range []string{"UNKNOWN", "UNKOWN", "get", "CONNECT", "TRACE", ""} {
		m, err := ParseMethod(name)
		assert.ErrorIs(t, err, ErrUnsupportedMethod, name)
		assert.Equal(t, MethodUnknown, m)
	}
}

func TestMethod_MarshalText(t *testing.T) {
	b, err := MethodPatch.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "PATCH", string(b))
	assert.Equal(t, "UNKNOWN", Method(200).String())
}

func TestMethod_UnmarshalText(t *testing.T) {
	var m Method
	require.NoError(t, m.UnmarshalText([]byte("DELETE")))
	assert.Equal(t, MethodDelete, m)
	assert.ErrorIs(t, m.UnmarshalText([]byte("TRACE")), ErrUnsupportedMethod)
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name   string
		scheme string
		host   string
		path   string
		want   string
	}{
		{"host with scheme", "http", "http://localhost:8080", "/health", "http://localhost:8080/health"},
		{"bare host gets scheme", "https", "example.com", "/a?b=1", "https://example.com/a?b=1"},
		{"trailing slash on host", "http", "http://h/", "/x", "http://h/x"},
		{"path without slash", "http", "h", "x", "http://h/x"},
		{"absolute-form target", "http", "http://replay:9000", "http://origin.example/p?q=2", "http://replay:9000/p?q=2"},
		{"escapes illegal characters", "http", "h", "/a b%zz", "http://h/a%20b%25zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildURL(tt.scheme, tt.host, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildURL_Errors(t *testing.T) {
	_, err := BuildURL("http", "  ", "/x")
	assert.Error(t, err)

	_, err = BuildURL("http", "http://", "/x")
	assert.Error(t, err)
}
