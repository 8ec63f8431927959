package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/hammamikhairi/calmcoach/internal/domain"
)

var (
	_ domain.Display        = (*Console)(nil)
	_ domain.RoundIndicator = (*Console)(nil)
)

// Console is a line-mode display for non-interactive runs. Each new label
// starts a line; countdown ticks rewrite the end of that line.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	label string
	last  int
	open  bool // a phase line is being rewritten
}

// NewConsole creates a console display writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Update implements domain.Display.
func (c *Console) Update(label string, v domain.Visual, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open || label != c.label || remaining > c.last {
		if c.open {
			fmt.Fprintln(c.out)
		}
		c.label = label
		c.open = true
	}
	c.last = remaining
	fmt.Fprintf(c.out, "\r  %-8s %-34s %6s", v, label, FormatRemaining(remaining))
}

// Reset implements domain.Display.
func (c *Console) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		fmt.Fprintln(c.out)
	}
	c.open = false
	c.label = ""
}

// ShowRound implements domain.RoundIndicator.
func (c *Console) ShowRound(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		fmt.Fprintln(c.out)
		c.open = false
		c.label = ""
	}
	fmt.Fprintf(c.out, "  Round %d of %d\n", current, total)
}
