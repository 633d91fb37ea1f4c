package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Sink receives one Advance per rendered file.
type Sink interface {
	Start(total int)
	Advance()
	Finish()
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Start(int) {}
func (Nop) Advance()  {}
func (Nop) Finish()   {}

// Counter records progress; it is mainly useful in tests.
type Counter struct {
	mu       sync.Mutex
	Total    int
	Done     int
	Finished bool
}

func (c *Counter) Start(total int) {
	c.mu.Lock()
	c.Total = total
	c.mu.Unlock()
}

func (c *Counter) Advance() {
	c.mu.Lock()
	c.Done++
	c.mu.Unlock()
}

func (c *Counter) Finish() {
	c.mu.Lock()
	c.Finished = true
	c.mu.Unlock()
}

var labelStyle = lipgloss.NewStyle().Faint(true)

// Bar draws a single-line progress bar, redrawn in place on every Advance.
type Bar struct {
	mu     sync.Mutex
	out    io.Writer
	label  string
	model  progress.Model
	total  int
	done   int
	active bool
	// width of the last frame in terminal cells, used to blank the line.
	width int
}

// NewBar returns a bar writing to out (usually stderr).
func NewBar(out io.Writer, label string) *Bar {
	return &Bar{
		out:   out,
		label: label,
		model: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (b *Bar) Start(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total = total
	b.done = 0
	b.active = true
	b.draw()
}

func (b *Bar) Advance() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done++
	b.draw()
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.draw()
	fmt.Fprintln(b.out)
	b.active = false
	b.width = 0
}

// Percent reports completion in [0, 1]. An empty run counts as complete.
func (b *Bar) Percent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.percent()
}

// LogWriter wraps w, normally the same terminal the bar draws on, so that log
// lines written while the bar is active land above it instead of splitting it.
func (b *Bar) LogWriter(w io.Writer) io.Writer {
	return &logWriter{bar: b, w: w}
}

type logWriter struct {
	bar *Bar
	w   io.Writer
}

func (l *logWriter) Write(p []byte) (int, error) {
	b := l.bar
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return l.w.Write(p)
	}
	b.clear()
	n, err := l.w.Write(p)
	b.draw()
	return n, err
}

func (b *Bar) percent() float64 {
	if b.total <= 0 {
		return 1
	}
	p := float64(b.done) / float64(b.total)
	if p > 1 {
		p = 1
	}
	return p
}

func (b *Bar) draw() {
	frame := fmt.Sprintf("%s %s %d/%d", labelStyle.Render(b.label), b.model.ViewAs(b.percent()), b.done, b.total)
	fmt.Fprint(b.out, "\r"+frame)
	b.width = lipgloss.Width(frame)
}

func (b *Bar) clear() {
	if b.width > 0 {
		fmt.Fprint(b.out, "\r"+strings.Repeat(" ", b.width)+"\r")
	}
}
