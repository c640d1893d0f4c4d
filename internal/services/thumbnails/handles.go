package thumbnails

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is a process-local reference to cached image data, of the form
// "blob:<uuid>". It is never the remote URL and must be released when the
// consumer no longer displays the image.
type Handle string

// Handles is the process-scoped registry behind Handle values.
type Handles struct {
	mu sync.Mutex
	m  map[Handle]string
}

func NewHandles() *Handles {
	return &Handles{m: make(map[Handle]string)}
}

// Register stores dataURL under a new handle.
func (h *Handles) Register(dataURL string) Handle {
	id := Handle("blob:" + uuid.NewString())
	h.mu.Lock()
	h.m[id] = dataURL
	h.mu.Unlock()
	return id
}

// Resolve returns the data URL for a live handle.
func (h *Handles) Resolve(id Handle) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.m[id]
	return v, ok
}

// Release frees one handle. Releasing twice is harmless.
func (h *Handles) Release(id Handle) {
	h.mu.Lock()
	delete(h.m, id)
	h.mu.Unlock()
}

// ReleaseAll frees every handle; call it on teardown.
func (h *Handles) ReleaseAll() {
	h.mu.Lock()
	clear(h.m)
	h.mu.Unlock()
}

func (h *Handles) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.m)
}
