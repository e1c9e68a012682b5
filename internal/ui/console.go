package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/f451labs/telemetry/internal/compute"
)

// Layout thresholds in terminal cells.
const (
	MinWidth     = 40
	DualColWidth = 80
	MinHeight    = 10
)

// Status and action labels.
const (
	StatusHeader  = "Uploads"
	LabelNext     = "Next:  "
	LabelLast     = "Last:  "
	LabelTotal    = "Total: "
	ActionWait    = "Waiting …"
	ActionInit    = "Initializing …"
	ActionUpload  = "Uploading …"
	blankTime     = "--:--:--"
	progressWidth = 20
)

// UploadStatus is the state shown in the status block.
type UploadStatus struct {
	Last   time.Time
	LastOK bool
	Next   time.Time
	Total  int
	Max    int
}

// Console draws the live terminal view: logo, upload status, data table and
// a footer legend. A Console that is not active ignores every update and
// renders nothing, so callers need no checks of their own.
type Console struct {
	mu sync.Mutex

	active        bool
	width, height int
	name          string
	logo          Logo
	palette       compute.TriPalette

	types      []string
	rows       map[string]compute.Row
	labelsOnly bool

	status   UploadStatus
	started  bool
	action   string
	progress int // -1 when no progress bar is shown

	// Show24h switches the status clock to 24-hour format.
	Show24h bool
	// UTC shows status times in UTC instead of local time.
	UTC bool
}

// NewConsole sizes a console for f. It stays inactive when enable is false,
// when f is not a terminal, or when the terminal is smaller than
// MinWidth x MinHeight.
func NewConsole(f *os.File, enable bool, name, shortName, version string, types []string) *Console {
	if !enable {
		return &Console{}
	}
	w, h, ok := TerminalSize(f)
	if !ok {
		return &Console{}
	}
	return NewConsoleSize(w, h, name, shortName, version, types)
}

// TerminalSize returns the size of f when it is a terminal.
func TerminalSize(f *os.File) (width, height int, ok bool) {
	if f == nil {
		return 0, 0, false
	}
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return 0, 0, false
	}
	w, h, err := term.GetSize(int(fd))
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}

// Fits reports whether a width x height terminal can show the live view.
func Fits(width, height int) bool {
	return width >= MinWidth && height >= MinHeight
}

// NewConsoleSize builds a console for a known terminal size.
func NewConsoleSize(width, height int, name, shortName, version string, types []string) *Console {
	c := &Console{progress: -1}
	if !Fits(width, height) {
		return c
	}
	logoWidth := width
	if width >= DualColWidth {
		logoWidth = width * 2 / 3
	}
	if shortName == "" {
		shortName = name
	}
	c.logo = NewLogo(logoWidth, shortName, version)
	c.logo.Plain = name
	if version != "" {
		c.logo.Plain += " - v" + version
	}
	c.active = true
	c.width, c.height = width, height
	c.name = name
	c.palette = compute.DefaultTriPalette()
	c.types = append([]string(nil), types...)
	c.labelsOnly = true
	c.action = ActionInit
	return c
}

// Active reports whether the console draws anything.
func (c *Console) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// DualColumn reports whether logo and status sit side by side.
func (c *Console) DualColumn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width >= DualColWidth
}

// Width is the terminal width the console was sized for.
func (c *Console) Width() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

// SetPalette replaces the low/normal/high colors.
func (c *Console) SetPalette(p compute.TriPalette) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.palette = p
}

// UpdateData replaces the table contents.
func (c *Console) UpdateData(rows map[string]compute.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.rows = rows
	c.labelsOnly = false
}

// UpdateUploadStatus replaces the status block values.
func (c *Console) UpdateUploadStatus(s UploadStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.status = s
	c.started = true
}

// UpdateAction sets the action line. An empty message means waiting. It
// also clears any progress bar.
func (c *Console) UpdateAction(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	if msg == "" {
		msg = ActionWait
	}
	c.action = msg
	c.progress = -1
}

// UpdateProgress shows a progress bar at pct percent labelled msg. A
// negative pct removes the bar.
func (c *Console) UpdateProgress(pct int, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	if msg != "" {
		c.action = msg
	}
	if pct < 0 {
		c.progress = -1
		return
	}
	c.progress = min(pct, 100)
}

// Render clears the screen and writes the current frame to w.
func (c *Console) Render(w io.Writer) error {
	frame := c.Frame()
	if frame == "" {
		return nil
	}
	_, err := io.WriteString(w, "\x1b[H\x1b[2J"+frame)
	return err
}

// Frame returns the current frame without screen control sequences.
func (c *Console) Frame() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return ""
	}

	rows := c.rows
	if c.labelsOnly {
		rows = c.labelRows()
	}
	table := Table(rows, c.types, TableOptions{
		LabelsOnly: c.labelsOnly,
		Width:      c.width,
		Palette:    c.palette,
	})

	var b strings.Builder
	status := c.statusLines()
	logo := strings.Split(c.logo.Render, "\n")
	if c.width >= DualColWidth {
		left := c.width * 2 / 3
		n := max(len(logo), len(status))
		for i := 0; i < n; i++ {
			var l, r string
			if i < len(logo) {
				l = logo[i]
			}
			if i < len(status) {
				r = status[i]
			}
			b.WriteString(strings.TrimRight(fit(l, left, alignLeft)+r, " "))
			b.WriteByte('\n')
		}
	} else {
		if c.logo.Rows() > 1 {
			b.WriteString(c.logo.Render)
			b.WriteByte('\n')
		}
		for _, l := range status {
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	b.WriteString(table)
	b.WriteString(c.footer())
	b.WriteByte('\n')
	return b.String()
}

func (c *Console) labelRows() map[string]compute.Row {
	if c.rows != nil {
		return c.rows
	}
	out := make(map[string]compute.Row, len(c.types))
	for _, t := range c.types {
		out[t] = compute.Row{Name: t, Label: t, CurrentOK: true}
	}
	return out
}

// SetLabels provides label-only rows drawn before the first UpdateData.
func (c *Console) SetLabels(rows map[string]compute.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.rows = rows
}

func (c *Console) statusLines() []string {
	colWidth := c.width
	if c.width >= DualColWidth {
		colWidth = c.width - c.width*2/3
	}
	title := " " + StatusHeader + " "
	side := max((colWidth-width(title))/2, 0)
	header := paint(compute.DefaultColor, strings.Repeat("─", side)+title+strings.Repeat("─", max(colWidth-side-width(title), 0)))

	next, last, total := blankTime, blankTime, "-"
	lastTag := ""
	if c.started {
		next = c.clock(c.status.Next)
		last = c.clock(c.status.Last)
		total = fmt.Sprint(c.status.Total)
		if c.status.Max > 0 {
			total += fmt.Sprintf("/%d", c.status.Max)
		}
		if !c.status.Last.IsZero() {
			if c.status.LastOK {
				lastTag = " " + paint("green", "[OK]")
			} else {
				lastTag = " " + paint("red", "[Error]")
			}
		}
	}

	return []string{
		header,
		paint(compute.DefaultColor, LabelNext+next),
		paint(compute.DefaultColor, LabelLast+last) + lastTag,
		paint(compute.DefaultColor, LabelTotal+total),
		c.actionLine(),
	}
}

func (c *Console) actionLine() string {
	if c.progress < 0 {
		return "⠿ " + c.action
	}
	filled := c.progress * progressWidth / 100
	bar := strings.Repeat("━", filled) + paint(compute.DefaultColor, strings.Repeat("━", progressWidth-filled))
	return fmt.Sprintf("%s %s %3d%%", c.action, bar, c.progress)
}

func (c *Console) clock(t time.Time) string {
	if t.IsZero() {
		return blankTime
	}
	if c.UTC {
		t = t.UTC()
	} else {
		t = t.Local()
	}
	if c.Show24h {
		return t.Format("15:04:05")
	}
	return t.Format("03:04:05 PM")
}

func (c *Console) footer() string {
	legend := "  " + paint(c.palette.Low, "LOW") + " " + paint(c.palette.Normal, "NORMAL") + " " + paint(c.palette.High, "HIGH")
	return legend + fit(c.logo.Plain, max(c.width-width(legend)-2, 0), alignRight)
}
