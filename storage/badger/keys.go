package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/quarrylabs/quarry/core"
)

// Key prefixes for different data types
const (
	documentPrefix  = "kdoc"
	chunkPrefix     = "kchnk"
	typeIndexPrefix = "ktype"
)

// makeDocumentKey generates a key for a document by fingerprint.
func makeDocumentKey(fp core.Fingerprint) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, fp))
}

// makeChunkKey generates a composite key for one chunk.
// Format: prefix:fingerprint:seq, both BigEndian so iteration order
// follows the sequence index.
func makeChunkKey(fp core.Fingerprint, seq int) []byte {
	prefix := chunkPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(fp))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(seq))
	return buf
}

// makeChunkScanPrefix generates the prefix covering all chunks of one
// document.
func makeChunkScanPrefix(fp core.Fingerprint) []byte {
	prefix := chunkPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(fp))
	return buf
}

// makeTypeIndexKey generates a composite key for the type index.
// Format: prefix:type:fingerprint
func makeTypeIndexKey(t core.DocumentType, fp core.Fingerprint) []byte {
	prefix := fmt.Sprintf("%s:%d:", typeIndexPrefix, t)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(fp))
	return buf
}
