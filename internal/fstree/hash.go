package fstree

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Supported content hash algorithms.
const (
	HashBlake2b = "blake2b"
	HashSHA256  = "sha256"
)

// hashBlockSize bounds peak memory while hashing: files are streamed
// through the hash in fixed-size blocks regardless of file size.
const hashBlockSize = 64 * 1024

// Digest is the hex-encoded content hash of a file. The zero value
// (Undefined) means the file could not be read.
type Digest string

// Undefined marks a file whose content could not be hashed.
const Undefined Digest = ""

// Pool of streaming buffers reused across HashFile calls so concurrent
// hashing does not allocate a block buffer per file.
var hashBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, hashBlockSize)
		return &buf
	},
}

// HashFile computes the content digest of the file at path using the
// given algorithm. The file is streamed in hashBlockSize blocks.
func HashFile(path, algorithm string) (Digest, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return Undefined, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Undefined, err
	}
	defer func() {
		_ = f.Close()
	}()

	buf := hashBufPool.Get().(*[]byte)
	defer hashBufPool.Put(buf)

	if _, err := io.CopyBuffer(h, f, *buf); err != nil {
		return Undefined, err
	}

	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

func newHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case HashBlake2b, "":
		return blake2b.New512(nil)
	case HashSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm: %s", algorithm)
	}
}
