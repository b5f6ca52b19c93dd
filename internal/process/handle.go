package process

import (
	"os"
	"sync"
)

// handle owns the pipe used to stream a child's output.
// Close releases both ends and is safe to call on every exit path.
type handle struct {
	r *os.File
	w *os.File

	once    sync.Once
	wClosed bool
}

func openHandle() (*handle, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	return &handle{r: r, w: w}, nil
}

// closeWriter closes the parent's write end so reads see EOF when the child exits
func (h *handle) closeWriter() {
	if !h.wClosed {
		h.w.Close()
		h.wClosed = true
	}
}

// Close releases the pipe
func (h *handle) Close() {
	h.once.Do(func() {
		h.closeWriter()
		h.r.Close()
	})
}
