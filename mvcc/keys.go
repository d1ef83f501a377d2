package mvcc

// Key space, per spec.md §3:
//   0x01              TxnNext            -> next free transaction id
//   0x02 id           TxnActive(id)      -> serialized Mode
//   0x03 version      TxnSnapshot(v)     -> serialized invisible set
//   0x04 id key       TxnUpdate(id,k)    -> empty
//   0x05 key          Metadata(k)        -> opaque
//   0xff key version  Record(k,v)        -> serialized valueRecord
const (
	prefixTxnNext     = 0x01
	prefixTxnActive   = 0x02
	prefixTxnSnapshot = 0x03
	prefixTxnUpdate   = 0x04
	prefixMetadata    = 0x05
	prefixRecord      = 0xff
)

func keyTxnNext() []byte { return []byte{prefixTxnNext} }

func keyTxnActive(id uint64) []byte {
	return append([]byte{prefixTxnActive}, encodeUint64(id)...)
}

func keyTxnActivePrefix() []byte { return []byte{prefixTxnActive} }

func decodeTxnActiveKey(raw []byte) uint64 {
	return decodeUint64(raw[1:])
}

func keyTxnSnapshot(version uint64) []byte {
	return append([]byte{prefixTxnSnapshot}, encodeUint64(version)...)
}

func keyTxnUpdate(id uint64, userKey []byte) []byte {
	k := append([]byte{prefixTxnUpdate}, encodeUint64(id)...)
	return append(k, encodeBytes(userKey)...)
}

func keyTxnUpdatePrefix(id uint64) []byte {
	return append([]byte{prefixTxnUpdate}, encodeUint64(id)...)
}

func decodeTxnUpdateKey(raw []byte) (userKey []byte) {
	// skip prefix byte + 8-byte id
	k, _ := decodeBytes(raw[9:])
	return k
}

func keyMetadata(userKey []byte) []byte {
	return append([]byte{prefixMetadata}, userKey...)
}

func keyRecord(userKey []byte, version uint64) []byte {
	k := append([]byte{prefixRecord}, encodeBytes(userKey)...)
	return append(k, encodeUint64(version)...)
}

// keyRecordRange returns the [start, end] Record(userKey, ·) key bounds for
// versions in [minVersion, maxVersion].
func keyRecordRange(userKey []byte, minVersion, maxVersion uint64) (start, end []byte) {
	return keyRecord(userKey, minVersion), keyRecord(userKey, maxVersion)
}

func decodeRecordKey(raw []byte) (userKey []byte, version uint64) {
	k, rest := decodeBytes(raw[1:])
	return k, decodeUint64(rest)
}

const maxVersion = ^uint64(0)
