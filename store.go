package flatfat

import (
	"io"

	"github.com/aligator/flatfat/checkpoint"
	"github.com/spf13/afero"
)

// clusterDevice reads and writes whole clusters of the backing file.
// It mainly exists to be able to mock the backing file in tests.
// Generated mock using mockgen:
//
//	mockgen -source=store.go -destination=store_mock.go -package flatfat
type clusterDevice interface {
	readCluster(index uint32, dst []byte) error
	writeCluster(index uint32, src []byte) error
	Close() error
}

// fileStore addresses the backing file in clusters. Every call goes to the file, there is no cache.
type fileStore struct {
	file        afero.File
	clusterSize int64
}

func newFileStore(file afero.File, clusterSize uint32) *fileStore {
	return &fileStore{
		file:        file,
		clusterSize: int64(clusterSize),
	}
}

func (s *fileStore) readCluster(index uint32, dst []byte) error {
	_, err := s.file.Seek(int64(index)*s.clusterSize, io.SeekStart)
	if err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	_, err = io.ReadFull(s.file, dst)
	if err == io.EOF {
		// A cluster inside the volume always has data, so reaching the end is not expected.
		err = io.ErrUnexpectedEOF
	}
	return checkpoint.Wrap(err, ErrIO)
}

func (s *fileStore) writeCluster(index uint32, src []byte) error {
	_, err := s.file.Seek(int64(index)*s.clusterSize, io.SeekStart)
	if err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	_, err = s.file.Write(src)
	return checkpoint.Wrap(err, ErrIO)
}

func (s *fileStore) Close() error {
	return checkpoint.Wrap(s.file.Close(), ErrIO)
}
