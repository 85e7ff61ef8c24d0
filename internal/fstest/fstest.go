// Package fstest chains expectations on restored or downloaded paths.
package fstest

import (
	"fmt"
	"os"
	"strings"

	"github.com/bitrise-io/go-s3verify/checksum"
)

// Failures collects every failed expectation on a path.
type Failures []error

func (f Failures) Error() string {
	messages := make([]string, 0, len(f))
	for _, err := range f {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "\n")
}

// PathExpectation ...
type PathExpectation struct {
	path   string
	checks []func(path string) error
}

// Expect starts a chain of expectations on path.
func Expect(path string) *PathExpectation {
	return &PathExpectation{path: path}
}

// Verify runs every expectation and reports all failures, not just the first.
func (e *PathExpectation) Verify() error {
	var failures Failures
	for _, check := range e.checks {
		if err := check(e.path); err != nil {
			failures = append(failures, err)
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return failures
}

// Dir ...
func (e *PathExpectation) Dir() *PathExpectation {
	return e.add(func(path string) error {
		info, err := lstat(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s: expected a directory", path)
		}
		return nil
	})
}

// RegularFile ...
func (e *PathExpectation) RegularFile() *PathExpectation {
	return e.add(func(path string) error {
		info, err := lstat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s: expected a regular file, got mode %s", path, info.Mode())
		}
		return nil
	})
}

// SymlinkTo expects path to be a symlink pointing at target.
func (e *PathExpectation) SymlinkTo(target string) *PathExpectation {
	return e.add(func(path string) error {
		info, err := lstat(path)
		if err != nil {
			return err
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("%s: expected a symlink", path)
		}
		got, err := os.Readlink(path)
		if err != nil {
			return err
		}
		if got != target {
			return fmt.Errorf("%s: symlink target mismatch, want %s got %s", path, target, got)
		}
		return nil
	})
}

// Perm ...
func (e *PathExpectation) Perm(want os.FileMode) *PathExpectation {
	return e.add(func(path string) error {
		info, err := lstat(path)
		if err != nil {
			return err
		}
		if got := info.Mode().Perm(); got != want.Perm() {
			return fmt.Errorf("%s: mode mismatch, want %o got %o", path, want.Perm(), got)
		}
		return nil
	})
}

// Content ...
func (e *PathExpectation) Content(want string) *PathExpectation {
	return e.add(func(path string) error {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if got := string(b); got != want {
			return fmt.Errorf("%s: content mismatch\nwant: %q\ngot:  %q", path, want, got)
		}
		return nil
	})
}

// Checksum expects the plain (single part) digest of the file to equal want.
func (e *PathExpectation) Checksum(algorithm checksum.Algorithm, want string) *PathExpectation {
	return e.add(func(path string) error {
		info, err := lstat(path)
		if err != nil {
			return err
		}
		got, err := checksum.FromDeclaredPartsWithMode(path, algorithm, false, []int64{info.Size()})
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("%s: %s checksum mismatch, want %s got %s", path, algorithm, want, got)
		}
		return nil
	})
}

func (e *PathExpectation) add(check func(path string) error) *PathExpectation {
	e.checks = append(e.checks, check)
	return e
}

func lstat(path string) (os.FileInfo, error) {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("lstat %s: %w", path, err)
	}
	return info, nil
}
