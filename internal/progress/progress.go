// Package progress renders an elapsed-seconds indicator while a fetch runs.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

const tick = time.Second

// Stop ends an indicator and clears its line. It is safe to call more than once.
type Stop func()

// Start shows "<label>... Ns" on w, updated every second, until the returned
// Stop is called. Nothing is rendered unless w is a terminal, so piped output
// and MCP stdio stay clean.
func Start(w io.Writer, label string) Stop {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}
	return start(w, label, tick)
}

func start(w io.Writer, label string, interval time.Duration) Stop {
	began := time.Now()
	quit := make(chan struct{})
	done := make(chan struct{})

	render := func() {
		fmt.Fprintf(w, "\r%s... %ds", label, int(time.Since(began)/time.Second))
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		render()
		for {
			select {
			case <-quit:
				fmt.Fprint(w, "\r\x1b[K")
				return
			case <-ticker.C:
				render()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(quit)
			<-done
		})
	}
}
