package helpers

import (
	"bytes"
	"io"
)

// PrefixWriter is an io.Writer implementation that adds a prefix to each line.
// It buffers incomplete lines until a newline is received so the prefix is
// only added at the beginning of complete lines. Compose subprocess output is
// streamed through it so build and startup logs are attributable to the tool
// that produced them.
type PrefixWriter struct {
	writer io.Writer
	prefix []byte
	buf    bytes.Buffer
}

func NewPrefixWriter(writer io.Writer, prefix string) *PrefixWriter {
	return &PrefixWriter{
		writer: writer,
		prefix: []byte(prefix),
	}
}

// Write implements io.Writer. It buffers input until complete lines are
// available, then writes each line with the configured prefix.
func (pw *PrefixWriter) Write(p []byte) (n int, err error) {
	pw.buf.Write(p)

	for {
		line, err := pw.buf.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				pw.buf.Write(line) // Write back the incomplete line
				break
			}
			return n, err
		}

		if _, wErr := pw.writer.Write(pw.prefix); wErr != nil {
			return n, wErr
		}
		if _, wErr := pw.writer.Write(line); wErr != nil {
			return n, wErr
		}
	}

	return len(p), nil
}
