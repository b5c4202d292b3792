package storage

import (
	"bufio"
	"errors"
	"os"
	"sync"

	"github.com/uhyunpark/hyperoptions/pkg/consensus"
)

type NopWAL struct{}

func NewNopWAL() *NopWAL          { return &NopWAL{} }
func (w *NopWAL) Append(_ string) {}

// FileWAL appends one line per commit and per accepted transaction. It is an
// audit trail; recovery replays blocks from the store.
//
// Append cannot report failures through consensus.WAL, so the first write
// error sticks and is returned by Err and Close.
type FileWAL struct {
	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	entries int
	err     error
}

func NewFileWAL(path string) (*FileWAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileWAL{f: f, w: bufio.NewWriter(f)}, nil
}

func (w *FileWAL) Append(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	if _, err := w.w.WriteString(line + "\n"); err != nil {
		w.err = err
		return
	}
	if err := w.w.Flush(); err != nil {
		w.err = err
		return
	}
	w.entries++
}

// Entries counts lines appended since open.
func (w *FileWAL) Entries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries
}

func (w *FileWAL) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *FileWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(w.err, w.w.Flush(), w.f.Close())
}

// ReadWAL returns every line of the log at path in append order.
func ReadWAL(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<24)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

var _ consensus.WAL = (*NopWAL)(nil)
var _ consensus.WAL = (*FileWAL)(nil)
