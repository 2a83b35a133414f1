package logsource

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tinytelemetry/flatstat/internal/model"
	"github.com/tinytelemetry/flatstat/internal/tailstate"
)

const (
	// DefaultFileBuffer is the default channel buffer size for tailed lines.
	DefaultFileBuffer = 50_000

	// DefaultFilePollInterval is how often the tailer looks for new data.
	DefaultFilePollInterval = time.Second

	// DefaultFileMaxLineSize is the default maximum size (in bytes) of a single line.
	DefaultFileMaxLineSize = 1024 * 1024 // 1MB
)

// FileConfig holds tunable parameters for the file tail source.
type FileConfig struct {
	BufferSize   int
	PollInterval time.Duration
	MaxLineSize  int

	// ReadFromStart reads the file's existing content on first open
	// instead of starting at the end.
	ReadFromStart bool

	// State persists read offsets across restarts. Optional.
	State *tailstate.Store
}

// FileSource tails one log file by polling, following truncation and
// rotation: a shrunk file is reread from the start, a replaced file
// (new inode under the same name) is reopened from offset zero.
type FileSource struct {
	path         string
	ch           chan model.IngestEnvelope
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	pollInterval time.Duration
	maxLineSize  int
	fromStart    bool
	state        *tailstate.Store
}

// NewFileSource creates a FileSource tailing path in a background goroutine.
// A missing file is not an error; the tailer waits for it to appear.
func NewFileSource(ctx context.Context, path string, conf ...FileConfig) *FileSource {
	bufferSize := DefaultFileBuffer
	pollInterval := DefaultFilePollInterval
	maxLineSize := DefaultFileMaxLineSize
	fromStart := false
	var state *tailstate.Store
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].PollInterval > 0 {
			pollInterval = conf[0].PollInterval
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
		fromStart = conf[0].ReadFromStart
		state = conf[0].State
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &FileSource{
		path:         path,
		ch:           make(chan model.IngestEnvelope, bufferSize),
		cancel:       cancel,
		pollInterval: pollInterval,
		maxLineSize:  maxLineSize,
		fromStart:    fromStart,
		state:        state,
	}
	s.wg.Add(1)
	go s.tail(ctx)
	return s
}

func (s *FileSource) Lines() <-chan model.IngestEnvelope { return s.ch }

func (s *FileSource) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *FileSource) Name() string { return "file" }

// cursor is the tailer's position in the currently open file.
type cursor struct {
	file    *os.File
	reader  *bufio.Reader
	offset  int64
	inode   uint64
	partial strings.Builder
}

func (s *FileSource) tail(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.ch)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var cur *cursor
	cur = s.open(true)

	for {
		select {
		case <-ctx.Done():
			if cur != nil {
				s.saveOffset(cur)
				cur.file.Close()
			}
			return
		case <-ticker.C:
			if cur == nil {
				if cur = s.open(true); cur == nil {
					continue
				}
			}
			if !s.drain(ctx, cur) {
				return
			}
			cur = s.checkRollover(ctx, cur)
			if cur != nil {
				s.saveOffset(cur)
			}
		}
	}
}

// open opens the tailed file. On the initial open, a saved offset for the
// same inode is resumed; otherwise reading starts at the end unless
// ReadFromStart is set. Subsequent opens (after rotation) start at zero.
// Returns nil when the file does not exist yet.
func (s *FileSource) open(initial bool) *cursor {
	f, err := os.Open(s.path)
	if err != nil {
		return nil
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil
	}

	ino := inodeOf(fi)
	var start int64
	if initial {
		if e, ok := s.lookupOffset(); ok && e.Inode == ino && e.Offset <= fi.Size() {
			start = e.Offset
		} else if !s.fromStart {
			start = fi.Size()
		}
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil
	}

	c := &cursor{
		file:   f,
		reader: bufio.NewReaderSize(f, 64*1024),
		offset: start,
		inode:  ino,
	}
	return c
}

// drain emits all complete lines currently available. Returns false when
// the context was cancelled mid-emit.
func (s *FileSource) drain(ctx context.Context, c *cursor) bool {
	for {
		chunk, err := c.reader.ReadString('\n')
		c.offset += int64(len(chunk))

		if err == nil {
			c.partial.WriteString(strings.TrimSuffix(chunk, "\n"))
			line := c.partial.String()
			c.partial.Reset()
			if line == "" {
				continue
			}
			select {
			case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: line}:
			case <-ctx.Done():
				return false
			}
			continue
		}

		if errors.Is(err, io.EOF) {
			c.partial.WriteString(chunk)
			if c.partial.Len() > s.maxLineSize {
				log.Printf("logsource: %s line exceeded max size (%d bytes), discarding", s.path, s.maxLineSize)
				c.partial.Reset()
			}
			return true
		}

		// Roll back past the partially consumed chunk so a transient read
		// error does not skip those bytes on the next poll.
		c.offset -= int64(len(chunk))
		if _, serr := c.file.Seek(c.offset, io.SeekStart); serr == nil {
			c.reader.Reset(c.file)
		}
		log.Printf("logsource: read error on %s: %v", s.path, err)
		return true
	}
}

// checkRollover detects truncation and rotation after a drain pass.
func (s *FileSource) checkRollover(ctx context.Context, c *cursor) *cursor {
	fi, err := os.Stat(s.path)
	if err != nil {
		// File removed; keep nothing open and wait for it to reappear.
		s.saveOffset(c)
		c.file.Close()
		return nil
	}

	curInfo, err := c.file.Stat()
	if err == nil && !os.SameFile(fi, curInfo) {
		// Rotated: a new file now owns the name. Remaining lines of the
		// old file were drained above; switch to the replacement.
		c.file.Close()
		if next := s.open(false); next != nil {
			s.drain(ctx, next)
			return next
		}
		return nil
	}

	if fi.Size() < c.offset {
		// Truncated in place: reread from the start.
		if _, err := c.file.Seek(0, io.SeekStart); err != nil {
			c.file.Close()
			return nil
		}
		c.offset = 0
		c.reader.Reset(c.file)
		c.partial.Reset()
	}
	return c
}

func (s *FileSource) lookupOffset() (tailstate.Entry, bool) {
	if s.state == nil {
		return tailstate.Entry{}, false
	}
	return s.state.Lookup(s.path)
}

// saveOffset records the position of the last complete line. Bytes of a
// pending partial line are excluded so a restart re-reads them.
func (s *FileSource) saveOffset(c *cursor) {
	if s.state == nil {
		return
	}
	s.state.Set(s.path, tailstate.Entry{
		Inode:  c.inode,
		Offset: c.offset - int64(c.partial.Len()),
	})
	if err := s.state.Save(); err != nil {
		log.Printf("logsource: saving tail state: %v", err)
	}
}

func inodeOf(fi os.FileInfo) uint64 {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
