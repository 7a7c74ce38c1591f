package storage

import "io"

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage holds the uploaded video blobs and the extracted frame images.
type Storage interface {
	SaveFile(r io.Reader, info FileInfo) (string, error)
	SaveBytes(data []byte, ext string) (string, error)
	OpenFile(name string) (io.ReadSeekCloser, error)
	ReadBytes(name string) ([]byte, error)
	// Path returns the absolute filesystem path of a stored blob, for
	// collaborators that need a real file (ffmpeg, transcription).
	Path(name string) (string, error)
	DeleteFile(name string) error
}
