package protocol

import "io"

// newChunkedPipe feeds full through an io.Pipe chunkSize bytes at a time,
// exercising FrameReader against a source that only ever yields partial
// reads.
func newChunkedPipe(full []byte, chunkSize int) (io.ReadCloser, func()) {
	pr, pw := io.Pipe()
	write := func() {
		defer pw.Close()
		for i := 0; i < len(full); i += chunkSize {
			end := i + chunkSize
			if end > len(full) {
				end = len(full)
			}
			if _, err := pw.Write(full[i:end]); err != nil {
				return
			}
		}
	}
	return pr, write
}
