// Package observability provides formatted output utilities for the CLI reports.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/jonathan/addrlens/internal/adapters"
	"github.com/jonathan/addrlens/internal/dom"
	"github.com/jonathan/addrlens/internal/engine"
	"github.com/jonathan/addrlens/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 20
)

// Printer handles formatted report output
type Printer struct {
	out    io.Writer
	title  *color.Color
	good   *color.Color
	warn   *color.Color
	bad    *color.Color
	subtle *color.Color
}

// NewPrinter creates a new Printer that writes to the given writer. Colors are
// used only when colored is true.
func NewPrinter(out io.Writer, colored bool) *Printer {
	p := &Printer{
		out:    out,
		title:  color.New(color.FgCyan, color.Bold),
		good:   color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		bad:    color.New(color.FgRed),
		subtle: color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.title, p.good, p.warn, p.bad, p.subtle} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// truncate shortens s to n runes, ending in "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// boxLine prints one padded box row, coloring the text when c is set.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) boxLine(text string, c *color.Color) {
	text = truncate(text, boxWidth-4)
	pad := strings.Repeat(" ", boxWidth-4-utf8.RuneCountInString(text))
	if c != nil {
		text = c.Sprint(text)
	}
	fmt.Fprintf(p.out, "│ %s%s │\n", text, pad)
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	p.boxLine(title, p.title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		p.boxLine(line, nil)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintAnnotations summarizes the address elements inserted into one page.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintAnnotations(page string, anns []dom.Annotation, stats engine.Stats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Page:       %s\n", page))
	sb.WriteString(fmt.Sprintf("Known tags: %d\n", stats.KnownTags))
	sb.WriteString(fmt.Sprintf("Text nodes: %d\n", stats.Visited))

	if len(anns) == 0 {
		sb.WriteString("\nNo addresses found")
		p.printBox("ANNOTATED ADDRESSES", sb.String())
		return
	}

	tagged := 0
	sb.WriteString("\n")
	count := min(len(anns), maxItemsToShow)
	for i := 0; i < count; i++ {
		a := anns[i]
		label := "(untagged)"
		if a.Tag != nil {
			tagged++
			label = a.Tag.Name
			if a.Tag.Entity != "" {
				label += " [" + a.Tag.Entity + "]"
			}
		}
		kind := "full"
		switch {
		case a.FromAttributes:
			kind = "attr"
		case a.Match.Truncated:
			kind = "short"
		}
		sb.WriteString(fmt.Sprintf("• %-5s %s  %s\n", kind, a.Match.Address.Short(), label))
	}
	for _, a := range anns[count:] {
		if a.Tag != nil {
			tagged++
		}
	}
	if len(anns) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(anns)-maxItemsToShow))
	}
	sb.WriteString(fmt.Sprintf("\n%d addresses, %d tagged", len(anns), tagged))

	p.printBox("ANNOTATED ADDRESSES", sb.String())
}

// PrintTags lists resolved tags ordered by address.
func (p *Printer) PrintTags(resolved map[types.Address]types.ResolvedTag) {
	addrs := make([]types.Address, 0, len(resolved))
	for a := range resolved {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var sb strings.Builder
	if len(addrs) == 0 {
		sb.WriteString("No tags stored")
	}
	for i, a := range addrs {
		tag := resolved[a]
		line := fmt.Sprintf("%s  %s", a.Short(), tag.Name)
		if tag.Entity != "" {
			line += " [" + tag.Entity + "]"
		}
		sb.WriteString(line)
		if i < len(addrs)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("TAGS (%d)", len(addrs)), sb.String())
}

// PrintRecords shows every source record for one address and the label chosen.
func (p *Printer) PrintRecords(addr types.Address, resolved types.ResolvedTag, records []types.TagRecord) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Address:  %s\n", addr.Checksum()))
	if resolved.Name != "" {
		sb.WriteString(fmt.Sprintf("Label:    %s\n", resolved.Name))
	}
	if resolved.Entity != "" {
		sb.WriteString(fmt.Sprintf("Entity:   %s\n", resolved.Entity))
	}
	sb.WriteString("\n")

	if len(records) == 0 {
		sb.WriteString("No records")
	}
	for i, rec := range records {
		line := fmt.Sprintf("%-12s %s", rec.Source, rec.Name)
		if rec.Entity != "" {
			line += " [" + rec.Entity + "]"
		}
		sb.WriteString(line)
		if i < len(records)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("TAG RECORDS", sb.String())
}

// PrintImportResults prints one status line per producer and a total.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintImportResults(results []adapters.Result) {
	total, failed := 0, 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(p.out, "%s %s: %v\n", p.bad.Sprint("✗"), r.Producer, r.Err)
		case len(r.Rejected) > 0:
			fmt.Fprintf(p.out, "%s %s: imported %d of %d (%d rejected)\n",
				p.warn.Sprint("!"), r.Producer, r.Imported, r.Produced, len(r.Rejected))
		default:
			fmt.Fprintf(p.out, "%s %s: imported %d\n", p.good.Sprint("✓"), r.Producer, r.Imported)
		}
		total += r.Imported
	}

	summary := fmt.Sprintf("%d records imported from %d sources", total, len(results)-failed)
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	fmt.Fprintln(p.out, p.subtle.Sprint(summary))
}
