package commitlog

const trailerSize = 8 + 8

// trailer closes every flush: the offset of the last entry written so far,
// followed by the magic value.
type trailer struct {
	lastDataOff uint64
	magic       uint64
}

func (t trailer) appendTo(buf []byte) []byte {
	var b [trailerSize]byte
	encoding.PutUint64(b[0:8], t.lastDataOff)
	encoding.PutUint64(b[8:16], t.magic)
	return append(buf, b[:]...)
}

func decodeTrailer(b []byte) trailer {
	return trailer{
		lastDataOff: encoding.Uint64(b[0:8]),
		magic:       encoding.Uint64(b[8:16]),
	}
}

// trailerOffset returns where a flush issued with its write cursor at next
// would place its trailer.
func trailerOffset(next uint64, blockSize int) uint64 {
	return next + padding(next+trailerSize, blockSize)
}

// closes reports whether t is the trailer a flush wrote right after the entry
// whose header sits at off.
func (t trailer) closes(off uint64, magic uint64) bool {
	return t.magic == magic && t.lastDataOff == off
}
