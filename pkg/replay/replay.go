package replay

import (
	"github.com/SmitUplenchwar2687/rhythm/internal/executor"
	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	internalreplay "github.com/SmitUplenchwar2687/rhythm/internal/replay"
	"github.com/SmitUplenchwar2687/rhythm/pkg/clock"
)

// Entry is one parsed and scheduled request.
type Entry = ingest.Entry

// Pipeline reads an access log into scheduled entries.
type Pipeline = ingest.Pipeline

// PipelineOptions configures a Pipeline.
type PipelineOptions = ingest.Options

// ParserConfig describes how lines are turned into entries.
type ParserConfig = ingest.ParserConfig

// Stats counts what a Pipeline read and skipped.
type Stats = ingest.Stats

// Filter selects which entries are replayed.
type Filter = internalreplay.Filter

// Executor performs one request per entry.
type Executor = internalreplay.Executor

// HTTPExecutor is the net/http based Executor.
type HTTPExecutor = executor.Executor

// ExecutorOptions configures an HTTPExecutor.
type ExecutorOptions = executor.Options

// Options configures a Replayer.
type Options = internalreplay.Options

// Replayer dispatches entries on their schedule through a worker pool.
type Replayer = internalreplay.Replayer

// Summary aggregates replay statistics.
type Summary = internalreplay.Summary

// NewPipeline creates an ingestion pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	return ingest.New(opts)
}

// NewExecutor creates an HTTP executor.
func NewExecutor(opts ExecutorOptions) (*HTTPExecutor, error) {
	return executor.New(opts)
}

// New creates a new replayer.
func New(exec Executor, clk clock.Clock, opts Options) (*Replayer, error) {
	return internalreplay.New(exec, clk, opts)
}
