// Package chunk computes the part layout for a multipart transfer.
//
// The planner is pure: given a plaintext length, a chunk size, and
// whether the object is encrypted, it deterministically produces the
// plaintext and ciphertext ranges for every part. Upload and download
// call it with identical inputs and must agree byte-for-byte, since
// the ciphertext offsets are used for range-GETs without ever reading
// the object.
package chunk

import "fmt"

// BlockSize is the AES block size in bytes used by the envelope cipher.
const BlockSize = 16

// Part describes one part of a multipart transfer, in both the
// plaintext and ciphertext dimensions. PartNumber is 1-based, matching
// the S3 multipart API; Index is the 0-based position used internally.
type Part struct {
	Index         int
	PartNumber    int32
	PlaintextStart int64
	PlaintextLen   int64
	CiphertextStart int64
	CiphertextLen   int64
}

// Plan computes the full part list for a transfer of fileLength bytes
// using chunkSize as the plaintext capacity of each non-final part.
//
// When encrypted is true, chunkSize must be a multiple of BlockSize;
// Plan returns an error otherwise, since the ciphertext-offset formula
// requires it.
func Plan(fileLength, chunkSize int64, encrypted bool) ([]Part, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk: chunk size must be positive, got %d", chunkSize)
	}
	if fileLength < 0 {
		return nil, fmt.Errorf("chunk: file length must be non-negative, got %d", fileLength)
	}
	if encrypted && chunkSize%BlockSize != 0 {
		return nil, fmt.Errorf("chunk: chunk size %d must be a multiple of %d bytes when encryption is enabled", chunkSize, BlockSize)
	}

	numParts := numParts(fileLength, chunkSize)
	parts := make([]Part, numParts)

	// Ciphertext stride is constant across parts: B*(C/B + 2). The
	// final part's ciphertext length depends on its own plaintext
	// length, not the stride, but its start is still on the grid.
	stride := BlockSize * (chunkSize/BlockSize + 2)

	for i := 0; i < numParts; i++ {
		plaintextStart := int64(i) * chunkSize
		plaintextLen := chunkSize
		if remaining := fileLength - plaintextStart; remaining < plaintextLen {
			plaintextLen = remaining
		}
		if fileLength == 0 {
			plaintextLen = 0
		}

		p := Part{
			Index:          i,
			PartNumber:     int32(i + 1),
			PlaintextStart: plaintextStart,
			PlaintextLen:   plaintextLen,
		}

		if encrypted {
			p.CiphertextStart = int64(i) * int64(stride)
			p.CiphertextLen = int64(BlockSize * (int(plaintextLen)/BlockSize + 2))
		} else {
			p.CiphertextStart = plaintextStart
			p.CiphertextLen = plaintextLen
		}

		parts[i] = p
	}

	return parts, nil
}

// numParts returns ceil(fileLength/chunkSize), or 1 when fileLength is 0.
func numParts(fileLength, chunkSize int64) int {
	if fileLength == 0 {
		return 1
	}
	n := fileLength / chunkSize
	if fileLength%chunkSize != 0 {
		n++
	}
	return int(n)
}
