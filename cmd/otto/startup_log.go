package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// startupLog provides step-by-step startup progress output with spinner support.
type startupLog struct {
	w     io.Writer
	isTTY bool
	mu    sync.Mutex
}

// newStartupLog creates a startup logger that writes to w.
// isTTY controls whether to use animated spinners (true) or static output (false).
func newStartupLog(w io.Writer, isTTY bool) *startupLog {
	return &startupLog{
		w:     w,
		isTTY: isTTY,
	}
}

// Step prints a completed step with a checkmark.
func (s *startupLog) Step(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "✓ %s\n", msg)
}

// StepTimed prints a completed step with a checkmark and duration.
func (s *startupLog) StepTimed(msg string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "✓ %s (%ds)\n", msg, int(d.Seconds()))
}

// fail prints a step that did not complete.
func (s *startupLog) fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "✗ %s\n", msg)
}

// StartSpinner starts progress output for a phase slow enough to watch.
// The returned function finishes the line: a timed checkmark when ok is
// true, a cross when it is false. Non-TTY mode skips the animation and
// prints a static line up front.
func (s *startupLog) StartSpinner(msg string) func(ok bool) {
	start := time.Now()

	if !s.isTTY {
		s.mu.Lock()
		fmt.Fprintf(s.w, "%s...\n", msg)
		s.mu.Unlock()

		return func(ok bool) {
			if ok {
				s.StepTimed(msg, time.Since(start))
				return
			}
			s.fail(msg)
		}
	}

	// TTY mode: animate spinner
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)

	spinnerFrames := []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}
	frameIdx := 0

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.w, "\r%c %s", spinnerFrames[frameIdx], msg)
				s.mu.Unlock()
				frameIdx = (frameIdx + 1) % len(spinnerFrames)
			}
		}
	}()

	stopOnce := sync.Once{}
	return func(ok bool) {
		stopOnce.Do(func() {
			cancel()
			wg.Wait()

			// Clear the spinner line before the final verdict.
			s.mu.Lock()
			fmt.Fprint(s.w, "\r")
			s.mu.Unlock()

			if ok {
				s.StepTimed(msg, time.Since(start))
				return
			}
			s.fail(msg)
		})
	}
}
