package combat

const consoleMaxLines = 5

// EventSink receives short status lines for the player.
type EventSink interface {
	Push(msg string)
}

// NopSink discards every line.
type NopSink struct{}

func (NopSink) Push(string) {}

// Console is a ring buffer of the most recent status lines.
type Console struct {
	lines []string
	head  int
	count int
}

// NewConsole creates a console with a fixed capacity.
func NewConsole() *Console {
	return &Console{
		lines: make([]string, consoleMaxLines),
	}
}

// Push appends a line, dropping the oldest once full.
func (c *Console) Push(msg string) {
	c.lines[c.head] = msg
	c.head = (c.head + 1) % consoleMaxLines
	if c.count < consoleMaxLines {
		c.count++
	}
}

// Recent returns lines in chronological order (oldest first).
func (c *Console) Recent() []string {
	out := make([]string, c.count)
	for i := 0; i < c.count; i++ {
		idx := (c.head - c.count + i + consoleMaxLines) % consoleMaxLines
		out[i] = c.lines[idx]
	}
	return out
}

// Last returns the most recent line, or "" if empty.
func (c *Console) Last() string {
	if c.count == 0 {
		return ""
	}
	return c.lines[(c.head-1+consoleMaxLines)%consoleMaxLines]
}
