package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/SmitUplenchwar2687/rhythm/internal/ingest"
	"github.com/SmitUplenchwar2687/rhythm/internal/replay"
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	styleLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	styleGood  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleBad   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

type summaryBlock struct {
	title string
	lines []string
}

func (b *summaryBlock) add(label string, value any) {
	b.lines = append(b.lines, styleLabel.Render(label)+fmt.Sprint(value))
}

func (b *summaryBlock) render(w io.Writer) {
	body := styleTitle.Render(b.title) + "\n" + strings.Join(b.lines, "\n")
	fmt.Fprintln(w, styleBox.Render(body))
}

func countStyle(n int, style lipgloss.Style) string {
	if n == 0 {
		return fmt.Sprint(n)
	}
	return style.Render(fmt.Sprint(n))
}

func printIngestStats(w io.Writer, path string, stats ingest.Stats, entries []*ingest.Entry) {
	b := summaryBlock{title: "Parsed " + path}
	b.add("Lines", stats.Lines)
	b.add("Entries", styleGood.Render(fmt.Sprint(stats.Entries)))
	b.add("Skipped", countStyle(stats.SkippedTotal(), styleWarn))
	for _, reason := range slices.Sorted(maps.Keys(stats.Skipped)) {
		b.add("  "+string(reason), stats.Skipped[reason])
	}
	if len(entries) > 0 {
		b.add("First", entries[0].Timestamp.Format(time.RFC3339))
		b.add("Last", entries[len(entries)-1].Timestamp.Format(time.RFC3339))
		b.add("Span", ingest.Span(entries))
	}

	perMethod := make(map[string]int)
	var replayTime time.Duration
	for _, e := range entries {
		perMethod[e.Method.String()]++
		replayTime += e.Delay
	}
	for _, m := range slices.Sorted(maps.Keys(perMethod)) {
		b.add("  "+m, perMethod[m])
	}
	b.add("Replay time", replayTime)
	b.render(w)
}

func printReplaySummary(w io.Writer, s *replay.Summary) {
	title := "Replay " + s.RunID
	if s.Interrupted {
		title += styleWarn.Render(" (interrupted)")
	}
	b := summaryBlock{title: title}
	b.add("Entries", s.Entries)
	b.add("Filtered", s.Filtered)
	b.add("Dispatched", s.Dispatched)
	b.add("Attempts", s.Attempts)
	b.add("Completed", s.Completed)
	b.add("Responses", styleGood.Render(fmt.Sprint(s.Succeeded)))
	b.add("Failed", countStyle(s.Failed, styleBad))
	b.add("Rejected", countStyle(s.Rejected, styleBad))
	b.add("Dropped", countStyle(s.Dropped, styleWarn))
	b.add("Caller runs", s.CallerRuns)
	for _, code := range slices.Sorted(maps.Keys(s.PerStatus)) {
		label := fmt.Sprintf("  %d", code)
		if code == 0 {
			label = "  no response"
		}
		b.add(label, s.PerStatus[code])
	}
	b.add("Mean TTFB", s.MeanTTFB.Round(time.Microsecond))
	b.add("Max TTFB", s.MaxTTFB.Round(time.Microsecond))
	b.add("Original span", s.Duration)
	b.add("Wall time", s.WallDuration.Round(time.Millisecond))
	b.render(w)
}
