package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	reportWidth = 46
	ansiReset   = "\033[0m"
)

// startupReport gathers what boot found and prints it as one block once the
// shard is listening. A failed boot prints only the error.
type startupReport struct {
	name  string
	shard int
	lines []string
}

func newStartupReport(name string, shard int) *startupReport {
	return &startupReport{name: name, shard: shard}
}

func (r *startupReport) section(title string) {
	rule := max(reportWidth-len(title)-1, 3)
	r.lines = append(r.lines, "", fmt.Sprintf("\033[33m── %s %s%s", title, strings.Repeat("─", rule), ansiReset))
}

func (r *startupReport) stat(label string, n int) {
	num := strconv.Itoa(n)
	dots := max(reportWidth-4-len(label)-len(num), 3)
	r.lines = append(r.lines, fmt.Sprintf("%s \033[90m%s%s \033[32m%s%s", label, strings.Repeat("·", dots), ansiReset, num, ansiReset))
}

func (r *startupReport) ok(format string, args ...any) {
	r.lines = append(r.lines, "\033[32m✓"+ansiReset+" "+fmt.Sprintf(format, args...))
}

func (r *startupReport) ready(format string, args ...any) {
	r.lines = append(r.lines, "\033[32m▶"+ansiReset+" "+fmt.Sprintf(format, args...))
}

// printStartup writes the banner followed by every collected line.
func (r *startupReport) printStartup(w io.Writer) {
	title := fmt.Sprintf("%s · shard %d", r.name, r.shard)
	pad := max(reportWidth-4-len([]rune(title)), 0)
	border := strings.Repeat("─", reportWidth-3)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  \033[36;1m┌%s┐%s\n", border, ansiReset)
	fmt.Fprintf(w, "  \033[36;1m│%s %s%s\033[36;1m│%s\n", ansiReset, title, strings.Repeat(" ", pad), ansiReset)
	fmt.Fprintf(w, "  \033[36;1m└%s┘%s\n", border, ansiReset)
	for _, l := range r.lines {
		if l == "" {
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintln(w, "  "+l)
	}
	fmt.Fprintln(w)
}
