package recorder

import (
	"context"
	"io"

	internalrecorder "github.com/SmitUplenchwar2687/rhythm/internal/recorder"
)

// Result is the outcome of one replayed request.
type Result = internalrecorder.Result

// Sink receives every recorded result.
type Sink = internalrecorder.Sink

// SinkFunc adapts a function to a Sink.
type SinkFunc = internalrecorder.SinkFunc

// Recorder fans results out to its sinks and keeps the most recent ones.
type Recorder = internalrecorder.Recorder

// Format is a result line format.
type Format = internalrecorder.Format

// RedisConfig configures the Redis stream sink.
type RedisConfig = internalrecorder.RedisConfig

// New creates a Recorder keeping the last keep results.
func New(keep int, sinks ...Sink) *Recorder {
	return internalrecorder.New(keep, sinks...)
}

// ParseFormat accepts "tsv" or "json".
func ParseFormat(s string) (Format, error) {
	return internalrecorder.ParseFormat(s)
}

// NewWriterSink writes one line per result to w.
func NewWriterSink(w io.Writer, format Format) *internalrecorder.WriterSink {
	return internalrecorder.NewWriterSink(w, format)
}

// OpenFile opens path for appending results.
func OpenFile(path string, format Format) (*internalrecorder.WriterSink, error) {
	return internalrecorder.OpenFile(path, format)
}

// NewRedisSink connects to Redis and appends results to a stream.
func NewRedisSink(ctx context.Context, cfg *RedisConfig) (*internalrecorder.RedisSink, error) {
	return internalrecorder.NewRedisSink(ctx, cfg)
}
