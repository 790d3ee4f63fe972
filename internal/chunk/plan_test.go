package chunk

import "testing"

func TestPlan_EmptyFile(t *testing.T) {
	parts, err := Plan(0, 4*BlockSize, false)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("expected exactly one part for an empty file, got %d", len(parts))
	}
	if parts[0].PlaintextLen != 0 {
		t.Errorf("expected empty plaintext length, got %d", parts[0].PlaintextLen)
	}
}

func TestPlan_PlaintextCoverage(t *testing.T) {
	const chunkSize = 48
	for _, fileLength := range []int64{1, 47, 48, 49, 96, 97, 1000} {
		parts, err := Plan(fileLength, chunkSize, false)
		if err != nil {
			t.Fatalf("Plan(%d) error = %v", fileLength, err)
		}

		var covered int64
		for i, p := range parts {
			if p.PlaintextStart != covered {
				t.Fatalf("fileLength=%d part %d: gap/overlap, start=%d want=%d", fileLength, i, p.PlaintextStart, covered)
			}
			covered += p.PlaintextLen
		}
		if covered != fileLength {
			t.Errorf("fileLength=%d: covered %d bytes, want %d", fileLength, covered, fileLength)
		}
	}
}

func TestPlan_EvenDivisionVsZeroLength(t *testing.T) {
	even, err := Plan(96, 48, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(even) != 2 {
		t.Fatalf("96/48: expected 2 parts, got %d", len(even))
	}
	if even[1].PlaintextLen != 48 {
		t.Errorf("96/48: last part should be non-empty, got len=%d", even[1].PlaintextLen)
	}

	zero, err := Plan(0, 48, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(zero) != 1 || zero[0].PlaintextLen != 0 {
		t.Errorf("0/48: expected a single empty part, got %+v", zero)
	}
}

func TestPlan_CiphertextStride(t *testing.T) {
	const chunkSize = 4 * 1024 * 1024 // 4 MiB, matches spec scenario 2
	fileLength := int64(3 * chunkSize)

	parts, err := Plan(fileLength, chunkSize, true)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}

	wantStride := int64(BlockSize * (chunkSize/BlockSize + 2))
	for i := 1; i < len(parts); i++ {
		gotStride := parts[i].CiphertextStart - parts[i-1].CiphertextStart
		if gotStride != wantStride {
			t.Errorf("part %d: stride = %d, want %d", i, gotStride, wantStride)
		}
	}

	wantCiphertextLen := int64(BlockSize * (chunkSize/BlockSize + 2))
	if parts[0].CiphertextLen != wantCiphertextLen {
		t.Errorf("ciphertext length = %d, want %d", parts[0].CiphertextLen, wantCiphertextLen)
	}
	if wantCiphertextLen != 4194336 {
		t.Errorf("sanity check failed: expected 4194336 per spec scenario 2, got %d", wantCiphertextLen)
	}
}

func TestPlan_RejectsUnalignedChunkSizeWhenEncrypted(t *testing.T) {
	if _, err := Plan(100, 17, true); err == nil {
		t.Fatal("expected an error for a chunk size that is not a multiple of the AES block size")
	}
}

func TestPlan_UnencryptedOffsetsEqualPlaintext(t *testing.T) {
	parts, err := Plan(200, 64, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range parts {
		if p.CiphertextStart != p.PlaintextStart || p.CiphertextLen != p.PlaintextLen {
			t.Errorf("part %d: ciphertext range should equal plaintext range when unencrypted, got %+v", p.Index, p)
		}
	}
}
