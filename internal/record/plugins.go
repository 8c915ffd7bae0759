package record

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/hrbrmstr/rwsort/internal/sortkey"
)

// BytesPerPacketPlugin demonstrates the plug-in field contract (§6):
// rec_to_bin writes an 8-byte derived value (average bytes per packet, 0 on
// a zero-packet record) at the node's assigned offset; bin_compare orders
// two such values numerically. It shows a key that cannot be expressed as a
// single built-in field because it is computed from two others.
func BytesPerPacketPlugin() sortkey.PluginField {
	return sortkey.PluginField{
		Name:  "bytes-per-packet",
		Width: 8,
		Extract: func(rec []byte, dst []byte) error {
			r := Record(rec)
			var avg uint64
			if p := r.Packets(); p > 0 {
				avg = r.Bytes() / p
			}
			binary.BigEndian.PutUint64(dst, avg)
			return nil
		},
		Compare: func(a, b []byte) (int, error) {
			av := binary.BigEndian.Uint64(a)
			bv := binary.BigEndian.Uint64(b)
			switch {
			case av < bv:
				return -1, nil
			case av > bv:
				return 1, nil
			default:
				return 0, nil
			}
		},
	}
}

// ChecksumPlugin demonstrates a plug-in field whose binary comparator does
// not simply compare integers: it orders records by the CRC32 checksum of
// the whole record. Useful mainly for exercising the plug-in dispatch path
// with an opaque 4-byte key.
func ChecksumPlugin() sortkey.PluginField {
	return sortkey.PluginField{
		Name:  "checksum",
		Width: 4,
		Extract: func(rec []byte, dst []byte) error {
			sum := crc32.ChecksumIEEE(rec)
			binary.BigEndian.PutUint32(dst, sum)
			return nil
		},
		Compare: func(a, b []byte) (int, error) {
			av := binary.BigEndian.Uint32(a)
			bv := binary.BigEndian.Uint32(b)
			switch {
			case av < bv:
				return -1, nil
			case av > bv:
				return 1, nil
			default:
				return 0, nil
			}
		},
	}
}
