// Package archive packs files and directories into zstd compressed tar
// archives so that a whole directory can be uploaded and verified as a single object.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/klauspost/compress/zstd"
)

// DefaultLevel ...
const DefaultLevel = 3

// Archiver ...
type Archiver struct {
	logger log.Logger
}

// NewArchiver ...
func NewArchiver(logger log.Logger) *Archiver {
	return &Archiver{logger: logger}
}

// Compress writes includePaths into a new archive at archivePath. Entries are
// stored with the paths as given. level is a zstd level between 1 and 19.
func (a *Archiver) Compress(archivePath string, includePaths []string, level int) (err error) {
	if level < 1 || level > 19 {
		return fmt.Errorf("compression level should be between 1 and 19, got %d", level)
	}

	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		if closeErr := archiveFile.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive file: %w", closeErr)
		}
	}()

	zstdWriter, err := zstd.NewWriter(archiveFile, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zstdWriter)

	for _, p := range includePaths {
		a.logger.Debugf("Adding %s", p)
		if err := filepath.Walk(filepath.Clean(p), func(file string, fi os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			return addEntry(tw, file, fi)
		}); err != nil {
			return fmt.Errorf("iterate on files: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := zstdWriter.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}

	return nil
}

func addEntry(tw *tar.Writer, file string, fi os.FileInfo) error {
	var link string
	if fi.Mode()&os.ModeSymlink != 0 {
		var err error
		if link, err = os.Readlink(file); err != nil {
			return fmt.Errorf("read symlink: %w", err)
		}
	}

	header, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return fmt.Errorf("create file info header: %w", err)
	}
	header.Name = filepath.ToSlash(filepath.Clean(file))

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write tar file header: %w", err)
	}

	if !fi.Mode().IsRegular() {
		return nil
	}

	data, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer data.Close() //nolint:errcheck

	if _, err := io.Copy(tw, data); err != nil {
		return fmt.Errorf("copy to archive: %w", err)
	}

	return nil
}

// Decompress extracts the archive at archivePath. Entry paths are joined to
// destinationDirectory when it is not empty.
func (a *Archiver) Decompress(archivePath string, destinationDirectory string) error {
	compressedFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer compressedFile.Close() //nolint:errcheck

	zr, err := zstd.NewReader(compressedFile)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar file: %w", err)
		}

		target := filepath.FromSlash(header.Name)
		if destinationDirectory != "" {
			target = filepath.Join(destinationDirectory, target)
			if !isWithin(destinationDirectory, target) {
				return fmt.Errorf("archive entry %s points outside of %s", header.Name, destinationDirectory)
			}
		}
		a.logger.Debugf("Extracting %s", target)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create target directories: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create target directories: %w", err)
			}
			if err := writeFile(target, tr, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("symlink file: %w", err)
			}
		}
	}

	return nil
}

func isWithin(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	fileToWrite, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(fileToWrite, r); err != nil {
		fileToWrite.Close() //nolint:errcheck
		return fmt.Errorf("copy content to file: %w", err)
	}
	if err := fileToWrite.Close(); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// AreAllPathsEmpty checks if the provided paths are all nonexistent files or empty directories
func AreAllPathsEmpty(includePaths []string) bool {
	for _, path := range includePaths {
		fileInfo, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			continue
		}

		if !fileInfo.IsDir() {
			return false
		}

		entries, err := os.ReadDir(path)
		if err == nil && len(entries) > 0 {
			return false
		}
	}

	return true
}
