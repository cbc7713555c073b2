package filemeta

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"
)

// FileSum is the content digest of one file
type FileSum struct {
	Hash string
	Size int64
}

// Hasher computes SHA-256 content digests, reusing copy buffers between files
type Hasher struct {
	buffers sync.Pool
}

// NewHasher creates a hasher
func NewHasher() *Hasher {
	return &Hasher{
		buffers: sync.Pool{New: func() interface{} {
			buf := make([]byte, 32*1024)
			return &buf
		}},
	}
}

// SumFile digests the contents of path. Open errors are returned unwrapped so
// callers can test them with errors.Is.
func (h *Hasher) SumFile(path string) (FileSum, error) {
	file, err := os.Open(path)
	if err != nil {
		return FileSum{}, err
	}
	defer file.Close()
	return h.Sum(file)
}

// Sum digests everything read from r
func (h *Hasher) Sum(r io.Reader) (FileSum, error) {
	buf := h.buffers.Get().(*[]byte)
	defer h.buffers.Put(buf)

	digest := sha256.New()
	n, err := io.CopyBuffer(digest, r, *buf)
	if err != nil {
		return FileSum{}, err
	}
	return FileSum{Hash: hex.EncodeToString(digest.Sum(nil)), Size: n}, nil
}

// HashBytes returns the hex digest Sum would report for content
func HashBytes(content []byte) string {
	digest := sha256.Sum256(content)
	return hex.EncodeToString(digest[:])
}
