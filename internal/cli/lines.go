package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// errInputClosed is returned once the input stream has ended.
var errInputClosed = errors.New("input closed")

type lineResult struct {
	line string
	err  error
}

// lineReader reads one line per request so that nothing consumes input
// between prompts. The full-screen editor can take over the terminal while
// no request is outstanding.
type lineReader struct {
	requests chan struct{}
	results  chan lineResult
	pending  bool
}

func newLineReader(r io.Reader) *lineReader {
	l := &lineReader{
		requests: make(chan struct{}),
		results:  make(chan lineResult, 1),
	}
	go l.loop(bufio.NewScanner(r))
	return l
}

func (l *lineReader) loop(sc *bufio.Scanner) {
	for range l.requests {
		if sc.Scan() {
			l.results <- lineResult{line: sc.Text()}
			continue
		}
		err := sc.Err()
		if err == nil {
			err = errInputClosed
		}
		l.results <- lineResult{err: err}
	}
}

// Read waits for the next line, returning early when ctx or stop is done.
// A read abandoned early is delivered to the following call.
func (l *lineReader) Read(ctx context.Context, stop <-chan struct{}) (string, error) {
	if !l.pending {
		l.requests <- struct{}{}
		l.pending = true
	}
	select {
	case res := <-l.results:
		l.pending = false
		return strings.TrimSpace(res.line), res.err
	case <-stop:
		return "", errStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// errStopped reports that the stop channel closed before a line arrived.
var errStopped = errors.New("stopped waiting for input")
