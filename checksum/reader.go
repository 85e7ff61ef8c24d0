package checksum

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// maxScratchSize caps the buffer used to stream a part into the accumulator.
const maxScratchSize = 1024 * 1024

// feed reads exactly size bytes from r into the current part of acc.
// A stream that ends early returns io.EOF or io.ErrUnexpectedEOF.
func feed(r io.Reader, acc Accumulator, size int64, buf []byte) error {
	for size > 0 {
		n := int64(len(buf))
		if size < n {
			n = size
		}

		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return err
		}

		acc.Update(buf[:n])
		size -= n
	}

	return nil
}

func isShortRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func newScratch(partSizes []int64) []byte {
	var largest int64 = 1
	for _, size := range partSizes {
		if size > largest {
			largest = size
		}
	}

	if largest > maxScratchSize {
		largest = maxScratchSize
	}

	return make([]byte, largest)
}

// readPartitions hashes f part by part according to partSizes and returns
// the digest of the last part. ok is false if the file is shorter or longer
// than the sum of the declared part sizes.
func readPartitions(f *os.File, acc Accumulator, partSizes []int64) (lastHash string, ok bool, err error) {
	info, err := f.Stat()
	if err != nil {
		return "", false, fmt.Errorf("stat file: %w", err)
	}

	buf := newScratch(partSizes)
	var readBytes int64
	for i, size := range partSizes {
		if err := feed(f, acc, size, buf); err != nil {
			if isShortRead(err) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("read part %d: %w", i+1, err)
		}

		readBytes += size
		lastHash = acc.Finalize()
	}

	if readBytes != info.Size() {
		return "", false, nil
	}

	return lastHash, true, nil
}
