package journal

// checksumStride is the distance between sampled bytes.
const checksumStride = 200

// Checksum computes the journal entry checksum of page.
//
// It is the engine's own cheap checksum: the nonce plus every 200th byte
// counting down from len(page)-200, excluding byte 0, with uint32
// wraparound.
func Checksum(nonce uint32, page []byte) uint32 {
	sum := nonce
	for i := len(page) - checksumStride; i > 0; i -= checksumStride {
		sum += uint32(page[i])
	}
	return sum
}
