// Package checksum computes S3 additional checksums of local files, including
// the composite checksum S3 reports for objects uploaded in multiple parts.
package checksum

import (
	"errors"
	"fmt"
	"os"
)

// Unknown is returned instead of a checksum when the declared part layout
// does not match the file. It must never be treated as a successful verification.
const Unknown = "UNKNOWN"

// ErrInvalidUsage marks calls with arguments no correct caller would pass,
// such as an empty part size list.
var ErrInvalidUsage = errors.New("invalid usage")

// IsMultipart tells whether a part layout is reported with the composite
// checksum format.
func IsMultipart(partSizes []int64, threshold int64) bool {
	count := len(partSizes)
	return count > 1 || (count == 1 && partSizes[0] >= threshold)
}

// FromDeclaredParts computes the checksum of the file at path split into
// partSizes. Multipart mode is derived from the number of parts and the threshold.
// It returns Unknown if the part sizes don't add up to the file size.
func FromDeclaredParts(path string, algorithm Algorithm, partSizes []int64, threshold int64) (string, error) {
	if err := validatePlan(partSizes); err != nil {
		return "", err
	}

	return fromDeclaredParts(path, algorithm, IsMultipart(partSizes, threshold), partSizes)
}

// FromDeclaredPartsWithMode works like FromDeclaredParts, but multipart mode
// is taken from the caller, typically from the remote object's metadata.
func FromDeclaredPartsWithMode(path string, algorithm Algorithm, multipart bool, partSizes []int64) (string, error) {
	if err := validatePlan(partSizes); err != nil {
		return "", err
	}

	if !multipart && len(partSizes) > 1 {
		return "", fmt.Errorf("%w: single part mode with %d declared parts", ErrInvalidUsage, len(partSizes))
	}

	return fromDeclaredParts(path, algorithm, multipart, partSizes)
}

// FromFixedChunking computes the checksum the file at path gets when it is
// uploaded in chunkSize parts. Files smaller than threshold get a plain checksum.
func FromFixedChunking(path string, algorithm Algorithm, chunkSize, threshold int64) (string, error) {
	if chunkSize <= 0 {
		return "", fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidUsage, chunkSize)
	}

	acc, err := NewAccumulator(algorithm)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}

	plan := PlanFixedChunks(info.Size(), chunkSize, threshold)
	buf := newScratch(plan)

	if info.Size() < threshold {
		if err := feed(f, acc, info.Size(), buf); err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return acc.Finalize(), nil
	}

	for i, size := range plan {
		if err := feed(f, acc, size, buf); err != nil {
			return "", fmt.Errorf("read part %d: %w", i+1, err)
		}
		acc.Finalize()
	}

	return acc.FinalizeAll(), nil
}

// PlanFixedChunks returns the part sizes FromFixedChunking uses for a file of
// the given size.
func PlanFixedChunks(size, chunkSize, threshold int64) []int64 {
	if size < threshold {
		return []int64{size}
	}
	if chunkSize <= 0 {
		return nil
	}

	plan := make([]int64, 0, size/chunkSize+1)
	for remaining := size; remaining > 0; {
		part := chunkSize
		if remaining < part {
			part = remaining
		}
		plan = append(plan, part)
		remaining -= part
	}

	return plan
}

func validatePlan(partSizes []int64) error {
	if len(partSizes) == 0 {
		return fmt.Errorf("%w: part size list is empty", ErrInvalidUsage)
	}

	for i, size := range partSizes {
		if size < 0 {
			return fmt.Errorf("%w: part %d has negative size %d", ErrInvalidUsage, i+1, size)
		}
	}

	return nil
}

func fromDeclaredParts(path string, algorithm Algorithm, multipart bool, partSizes []int64) (string, error) {
	acc, err := NewAccumulator(algorithm)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	lastHash, ok, err := readPartitions(f, acc, partSizes)
	if err != nil {
		return "", err
	}
	if !ok {
		return Unknown, nil
	}

	if !multipart {
		return lastHash, nil
	}

	return acc.FinalizeAll(), nil
}
