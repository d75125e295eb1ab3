package commitlog

type Statistics struct {
	WriteOffset    uint64 `json:"write_offset" yaml:"write_offset"`
	LastDataOffset uint64 `json:"last_data_offset" yaml:"last_data_offset"`
	StoredBytes    uint64 `json:"stored_bytes" yaml:"stored_bytes"`
	BufferedBytes  uint64 `json:"buffered_bytes" yaml:"buffered_bytes"`
}

func (l *Log) Statistics() Statistics {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return Statistics{
		WriteOffset:    l.offset,
		LastDataOffset: l.lastDataOff,
		StoredBytes:    l.size,
		BufferedBytes:  uint64(len(l.buffer)),
	}
}
