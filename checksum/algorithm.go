package checksum

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"hash/crc32"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Algorithm selects the hash family of an S3 additional checksum.
type Algorithm = types.ChecksumAlgorithm

// Supported algorithms.
const (
	CRC32  = types.ChecksumAlgorithmCrc32
	CRC32C = types.ChecksumAlgorithmCrc32c
	SHA1   = types.ChecksumAlgorithmSha1
	SHA256 = types.ChecksumAlgorithmSha256
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

var hashers = map[Algorithm]func() hash.Hash{
	CRC32:  func() hash.Hash { return crc32.NewIEEE() },
	CRC32C: func() hash.Hash { return crc32.New(castagnoliTable) },
	SHA1:   sha1.New,
	SHA256: sha256.New,
}

// SupportedAlgorithms ...
func SupportedAlgorithms() []Algorithm {
	return []Algorithm{CRC32, CRC32C, SHA1, SHA256}
}

// ParseAlgorithm maps a user provided name (sha256, SHA-256, crc32c...) to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)

	for _, algorithm := range SupportedAlgorithms() {
		if string(algorithm) == normalized {
			return algorithm, nil
		}
	}

	return "", fmt.Errorf("unsupported checksum algorithm: %s", name)
}

// ValidateAlgorithm ...
func ValidateAlgorithm(algorithm Algorithm) error {
	if _, ok := hashers[algorithm]; !ok {
		return fmt.Errorf("%w: unsupported checksum algorithm: %q", ErrInvalidUsage, algorithm)
	}
	return nil
}
