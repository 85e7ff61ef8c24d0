package verify

import (
	"context"
	"os"
	"runtime"
	"sync"

	"github.com/bitrise-io/go-s3verify/checksum"
	"github.com/bitrise-io/go-s3verify/s3object"
)

// fakeStore keeps objects in memory and reports the checksums S3 would
// report for them.
type fakeStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	layouts  map[string][]int64
	uploads  int
	partSize int64
	err      error

	// peakGoroutines is the highest goroutine count seen inside ObjectChecksum.
	peakGoroutines int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: map[string][]byte{},
		layouts: map[string][]int64{},
	}
}

func (s *fakeStore) put(key string, content []byte, partSizes []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = content
	s.layouts[key] = partSizes
}

func (s *fakeStore) ObjectChecksum(ctx context.Context, key string, algorithm checksum.Algorithm) (*s3object.ObjectChecksum, error) {
	s.mu.Lock()
	content, ok := s.objects[key]
	layout := s.layouts[key]
	if n := runtime.NumGoroutine(); n > s.peakGoroutines {
		s.peakGoroutines = n
	}
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if !ok {
		return nil, s3object.ErrObjectNotFound
	}

	acc, err := checksum.NewAccumulator(algorithm)
	if err != nil {
		return nil, err
	}

	multipart := len(layout) > 1
	value := ""
	offset := int64(0)
	for _, size := range layout {
		acc.Update(content[offset : offset+size])
		value = acc.Finalize()
		offset += size
	}
	if multipart {
		value = acc.FinalizeAll()
	}

	return &s3object.ObjectChecksum{
		Key:           key,
		Size:          int64(len(content)),
		Algorithm:     algorithm,
		Value:         value,
		Multipart:     multipart,
		PartSizes:     layout,
		PartsComplete: true,
	}, nil
}

func (s *fakeStore) Upload(ctx context.Context, key, path string, algorithm checksum.Algorithm, partSize int64) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.uploads++
	s.partSize = partSize
	s.mu.Unlock()

	// like the S3 upload manager: a body of at most one part is a single PUT
	size := int64(len(content))
	if size <= partSize {
		s.put(key, content, []int64{size})
		return nil
	}
	s.put(key, content, checksum.PlanFixedChunks(size, partSize, 0))
	return nil
}

func (s *fakeStore) Download(ctx context.Context, key, dest string) error {
	s.mu.Lock()
	content, ok := s.objects[key]
	s.mu.Unlock()

	if !ok {
		return s3object.ErrObjectNotFound
	}
	return os.WriteFile(dest, content, 0644)
}
