package cmd

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/khanhnv2901/seca-suite/internal/infrastructure/backend"
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// showProgress reports whether progress output should be drawn on w.
func showProgress(w io.Writer) bool {
	if os.Getenv("CI") != "" {
		return false
	}
	return isTerminal(w)
}

// uploadProgress draws a byte progress bar for a capture upload. It returns
// nil when w is not a terminal.
func uploadProgress(w io.Writer, label string) backend.ProgressFunc {
	if !showProgress(w) {
		return nil
	}
	return newUploadBar(w, label)
}

func newUploadBar(w io.Writer, label string) backend.ProgressFunc {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	return func(sent, total int64) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(label),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowBytes(true),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set64(sent)
		if total > 0 && sent >= total {
			_ = bar.Finish()
		}
	}
}

// spinner shows an indeterminate activity indicator while an analysis runs.
type spinner struct {
	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// startSpinner starts a spinner on w, or returns a no-op spinner when w is not
// a terminal. Stop must be called.
func startSpinner(w io.Writer, label string) *spinner {
	s := &spinner{stop: make(chan struct{}), done: make(chan struct{})}
	if !showProgress(w) {
		close(s.done)
		return s
	}
	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	go s.loop()
	return s
}

func (s *spinner) loop() {
	defer close(s.done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = s.bar.Add(1)
		case <-s.stop:
			_ = s.bar.Finish()
			return
		}
	}
}

// Stop halts the spinner and waits for it to clear its line.
func (s *spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
