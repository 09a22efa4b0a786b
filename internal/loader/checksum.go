package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// MetaChecksum is the metadata key holding the hex SHA-256 of the data section.
const MetaChecksum = "sha256"

// ComputeChecksumReader computes the SHA-256 checksum of everything r yields.
func ComputeChecksumReader(r io.Reader) ([32]byte, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// Checksum hashes the file's tensor data section.
func (r *SafeTensorsReader) Checksum() ([32]byte, error) {
	return ComputeChecksumReader(io.NewSectionReader(r.file, r.dataOffset, r.dataSize))
}

// VerifyChecksum compares the data section against the checksum stored in
// the metadata. Files without a stored checksum pass.
func (r *SafeTensorsReader) VerifyChecksum() error {
	stored, ok := r.header.Metadata[MetaChecksum]
	if !ok {
		return nil
	}
	want, err := hex.DecodeString(stored)
	if err != nil || len(want) != sha256.Size {
		return fmt.Errorf("%w: malformed stored checksum %q", ErrChecksumMismatch, stored)
	}
	got, err := r.Checksum()
	if err != nil {
		return fmt.Errorf("failed to hash tensor data: %w", err)
	}
	if [32]byte(want) != got {
		return ErrChecksumMismatch
	}
	return nil
}
