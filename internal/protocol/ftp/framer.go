package ftp

import "bytes"

var crlf = []byte("\r\n")

// LineFramer splits the control stream into CRLF-terminated lines.
//
// Bytes are appended with Feed as they arrive from the socket and complete
// lines are drained with Next. Partial lines stay buffered until their
// terminator arrives, so a command split across several reads is framed
// exactly once. There is no length cap.
type LineFramer struct {
	buf []byte
}

// Feed appends raw bytes read from the control connection.
func (f *LineFramer) Feed(p []byte) {
	f.buf = append(f.buf, p...)
}

// Next returns the next complete line without its terminator and removes it
// from the buffer. ok is false when no complete line is buffered.
func (f *LineFramer) Next() (line []byte, ok bool) {
	i := bytes.Index(f.buf, crlf)
	if i < 0 {
		return nil, false
	}

	line = make([]byte, i)
	copy(line, f.buf[:i])

	// Shift the remainder down so the backing array is reused.
	n := copy(f.buf, f.buf[i+len(crlf):])
	f.buf = f.buf[:n]

	return line, true
}

// Buffered returns the number of bytes waiting for a terminator.
func (f *LineFramer) Buffered() int {
	return len(f.buf)
}
