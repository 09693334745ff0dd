package main

import "testing"

func TestIndexToStringRoundTripsThroughAlphabet(t *testing.T) {
	// index 0 is the all-first-alphabet-character string.
	got := indexToString(0, 3)
	want := string([]byte{alphabet[0], alphabet[0], alphabet[0]})
	if got != want {
		t.Errorf("indexToString(0, 3) = %q, want %q", got, want)
	}
}

func TestIndexToStringIsInjectiveOverSmallRange(t *testing.T) {
	seen := make(map[string]bool)
	for i := uint64(0); i < 500; i++ {
		s := indexToString(i, 3)
		if len(s) != 3 {
			t.Fatalf("indexToString(%d, 3) has length %d, want 3", i, len(s))
		}
		if seen[s] {
			t.Fatalf("indexToString(%d, 3) = %q collides with an earlier index", i, s)
		}
		seen[s] = true
	}
}

func TestCrcOfMatchesRawUnfinalizedConvention(t *testing.T) {
	// crcOf is the raw CRC32C seeded with ~1, with no final complement.
	if got, want := crcOf("aaa"), uint32(0xb9298a58); got != want {
		t.Fatalf("crcOf(\"aaa\") = %#x, want %#x", got, want)
	}

	// A brute-force search from index 0 over every 3-character string
	// must stop at "aaa" when the target is crcOf("aaa").
	target := crcOf("aaa")
	limit := uint64(len(alphabet) * len(alphabet) * len(alphabet))
	idx := uint64(0)
	for i := uint64(0); i < limit; i++ {
		if crcOf(indexToString(i, 3)) == target {
			idx = i
			break
		}
	}
	if got := indexToString(idx, 3); got != "aaa" || crcOf(got) != target {
		t.Fatalf("expected index %d to map to \"aaa\" with matching crc", idx)
	}
}
