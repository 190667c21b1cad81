package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/mattn/go-isatty"
)

// printer renders command output as colored tables or JSON.
type printer struct {
	w     io.Writer
	json  bool
	title *color.Color
	faint *color.Color
	good  *color.Color
	bad   *color.Color
}

func newPrinter(w io.Writer, asJSON, noColor bool) *printer {
	p := &printer{
		w:     w,
		json:  asJSON,
		title: color.New(color.Bold, color.Underline),
		faint: color.New(color.Faint, color.Italic),
		good:  color.New(color.FgGreen),
		bad:   color.New(color.FgHiRed),
	}
	if noColor || !isTerminal(w) {
		for _, c := range []*color.Color{p.title, p.faint, p.good, p.bad} {
			c.DisableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Table prints headers and rows, or the JSON form of v when --json is set.
func (p *printer) Table(v any, headers []string, rows [][]string) error {
	if p.json {
		return p.JSON(v)
	}
	if len(rows) == 0 {
		_, _ = p.faint.Fprintln(p.w, " none")
		return nil
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	head := make([]any, len(headers))
	for i, h := range headers {
		head[i] = p.title.Sprint(h)
	}
	tbl.AddRow(head...)
	for _, r := range rows {
		cells := make([]any, len(r))
		for i, c := range r {
			cells[i] = c
		}
		tbl.AddRow(cells...)
	}
	_, err := fmt.Fprintln(p.w, tbl)
	return err
}

// JSON prints v as indented JSON.
func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Done prints a confirmation, or {"status":"ok"} with --json.
func (p *printer) Done(format string, args ...any) error {
	if p.json {
		return p.JSON(map[string]string{"status": "ok"})
	}
	_, err := p.good.Fprintf(p.w, format+"\n", args...)
	return err
}

// Signed formats v with one decimal, highlighting positive values.
func (p *printer) Signed(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if v > 0 {
		return p.bad.Sprint("+" + s)
	}
	return p.good.Sprint(s)
}

// cycleRanges collapses sorted cycle numbers into ranges: [0 1 2 5] -> "0-2, 5".
func cycleRanges(cycles []int) string {
	if len(cycles) == 0 {
		return "-"
	}
	var out []string
	left, right := cycles[0], cycles[0]
	flush := func() {
		if left == right {
			out = append(out, strconv.Itoa(left))
		} else {
			out = append(out, strconv.Itoa(left)+"-"+strconv.Itoa(right))
		}
	}
	for _, c := range cycles[1:] {
		if c == right+1 {
			right = c
			continue
		}
		flush()
		left, right = c, c
	}
	flush()
	return strings.Join(out, ", ")
}
