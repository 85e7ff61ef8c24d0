package checksum

import (
	"encoding/base64"
	"fmt"
	"hash"
)

// Accumulator hashes a stream part by part and folds the part digests into
// an S3 style composite checksum.
type Accumulator interface {
	// Update feeds bytes into the running hash of the current part.
	Update(p []byte)

	// Finalize closes the current part, returns its base64 digest and
	// starts the next part.
	Finalize() string

	// FinalizeAll returns the hash of the concatenated raw part digests,
	// base64 encoded and suffixed with "-<number of parts>".
	FinalizeAll() string

	// Parts returns how many parts were finalized so far.
	Parts() int
}

type accumulator struct {
	newHash  func() hash.Hash
	current  hash.Hash
	partSums []byte
	parts    int
}

// NewAccumulator ...
func NewAccumulator(algorithm Algorithm) (Accumulator, error) {
	newHash, ok := hashers[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported checksum algorithm: %q", ErrInvalidUsage, algorithm)
	}

	return &accumulator{
		newHash: newHash,
		current: newHash(),
	}, nil
}

func (a *accumulator) Update(p []byte) {
	// hash.Hash never returns an error from Write
	_, _ = a.current.Write(p)
}

func (a *accumulator) Finalize() string {
	sum := a.current.Sum(nil)
	a.partSums = append(a.partSums, sum...)
	a.parts++
	a.current.Reset()

	return base64.StdEncoding.EncodeToString(sum)
}

func (a *accumulator) FinalizeAll() string {
	h := a.newHash()
	_, _ = h.Write(a.partSums)

	return fmt.Sprintf("%s-%d", base64.StdEncoding.EncodeToString(h.Sum(nil)), a.parts)
}

func (a *accumulator) Parts() int {
	return a.parts
}
