package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Payload provides memory-safe storage for a secret payload held in process.
// It wraps memguard.Enclave so the plaintext is encrypted at rest in memory
// and protected from swapping via mlock. The memory store keeps every
// payload inside a Payload so a heap dump of the process never contains
// plaintext for coordinates that are not currently being read.
type Payload struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy() calls and prevents use after
	// destroy
	destroyed bool
}

// NewPayload seals secret bytes into a protected memory region. The input
// slice is copied; the caller should zero its own copy.
//
// If mlock is unavailable (e.g. due to RLIMIT_MEMLOCK), memguard degrades
// to standard allocation; the data is still encrypted at rest.
func NewPayload(data []byte) *Payload {
	// memguard.NewEnclave encrypts the data with XSalsa20Poly1305,
	// attempts to mlock the backing memory, and sets up guard pages.
	return &Payload{
		enclave: memguard.NewEnclave(data),
	}
}

// Open decrypts and returns the payload in a locked buffer. The caller MUST
// call Destroy() on the returned LockedBuffer when done to wipe the
// plaintext from memory:
//
//	locked, err := p.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//	value := locked.String()
func (p *Payload) Open() (*memguard.LockedBuffer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.destroyed {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}

	return p.enclave.Open()
}

// Destroy marks this payload as destroyed and prevents further use. The
// encrypted enclave data is garbage collected; for complete cleanup of all
// memguard data at process exit, call memguard.Purge() in main.
//
// Destroy is idempotent. After Destroy, Open returns an empty buffer.
func (p *Payload) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}

	p.enclave = nil
	p.destroyed = true
}
