package daemon

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const logBufferSize = 500

// LogBuffer is a logrus hook that keeps the most recent formatted lines.
type LogBuffer struct {
	formatter logrus.Formatter

	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = logBufferSize
	}
	return &LogBuffer{
		formatter: &logrus.TextFormatter{DisableColors: true, FullTimestamp: true},
		lines:     make([]string, size),
	}
}

func (b *LogBuffer) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (b *LogBuffer) Fire(entry *logrus.Entry) error {
	line, err := b.formatter.Format(entry)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[b.next] = strings.TrimRight(string(line), "\n")
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
	return nil
}

// Lines returns up to n buffered lines, oldest first. n <= 0 returns all.
func (b *LogBuffer) Lines(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	if b.full {
		out = append(out, b.lines[b.next:]...)
	}
	out = append(out, b.lines[:b.next]...)
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
