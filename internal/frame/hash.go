package frame

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Hash returns a hex SHA-256 fingerprint of the frame's column names, column
// kinds and values. Equal frames hash equally regardless of how they were
// built.
func (f *Frame) Hash() string {
	h := sha256.New()
	var buf [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}

	binary.LittleEndian.PutUint64(buf[:], uint64(f.rows))
	h.Write(buf[:])
	for _, c := range f.cols {
		writeString(c.Name)
		if c.Nominal {
			h.Write([]byte{1})
			for _, s := range c.Str {
				writeString(s)
			}
			continue
		}
		h.Write([]byte{0})
		for _, v := range c.Num {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
