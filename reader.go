package flatfat

import (
	"io"

	"github.com/aligator/flatfat/checkpoint"
)

// chainReader streams the content of a file cluster by cluster.
type chainReader struct {
	store     clusterDevice
	chain     *chainIter
	remaining int64

	buf     []byte
	pending []byte
}

func (v *Volume) newChainReader(start uint32, size int64) *chainReader {
	return &chainReader{
		store:     v.store,
		chain:     v.fat.chain(start),
		remaining: size,
		buf:       make([]byte, v.header.ClusterSize),
	}
}

func (r *chainReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(r.pending) == 0 {
		if r.remaining <= 0 {
			return 0, io.EOF
		}

		if !r.chain.Next() {
			if err := r.chain.Err(); err != nil {
				return 0, err
			}
			return 0, checkpoint.Newf(ErrCorrupt, "chain ends with %d bytes left", r.remaining)
		}
		if err := r.store.readCluster(r.chain.Cluster(), r.buf); err != nil {
			return 0, err
		}

		n := int64(len(r.buf))
		if r.remaining < n {
			// Trailing partial cluster.
			n = r.remaining
		}
		r.pending = r.buf[:n]
		r.remaining -= n
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// readFileAt reads up to readSize bytes at offset of the file starting at cluster start.
// If the file ends before readSize bytes are read, the data read so far is returned together with io.EOF.
func (v *Volume) readFileAt(start uint32, fileSize int64, offset int64, readSize int64) ([]byte, error) {
	if offset < 0 || readSize < 0 {
		return nil, checkpoint.Newf(ErrInvalidParameters, "read of %d bytes at %d", readSize, offset)
	}
	if offset >= fileSize {
		return nil, io.EOF
	}

	end := offset + readSize
	truncated := false
	if end > fileSize {
		end = fileSize
		truncated = true
	}

	clusterSize := int64(v.header.ClusterSize)
	data := make([]byte, 0, end-offset)
	buf := make([]byte, clusterSize)

	it := v.fat.chain(start)
	for it.Next() {
		clusterStart := int64(it.Steps()-1) * clusterSize
		clusterEnd := clusterStart + clusterSize
		if clusterEnd <= offset {
			continue
		}
		if clusterStart >= end {
			break
		}

		if err := v.store.readCluster(it.Cluster(), buf); err != nil {
			return data, err
		}

		from := offset - clusterStart
		if from < 0 {
			from = 0
		}
		to := end - clusterStart
		if to > clusterSize {
			to = clusterSize
		}
		data = append(data, buf[from:to]...)
	}
	if err := it.Err(); err != nil {
		return data, err
	}

	if int64(len(data)) < end-offset {
		return data, checkpoint.Newf(ErrCorrupt, "chain ends after %d of %d bytes", offset+int64(len(data)), end)
	}
	if truncated {
		return data, io.EOF
	}
	return data, nil
}
