package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// StdoutPublisher implements Publisher by writing one JSON document
// per line, optionally indented for human reading.
type StdoutPublisher struct {
	out    io.Writer
	pretty bool
}

// NewStdoutPublisher creates a publisher writing to stdout
func NewStdoutPublisher(pretty bool) *StdoutPublisher {
	return &StdoutPublisher{out: os.Stdout, pretty: pretty}
}

// NewWriterPublisher creates a publisher writing to an arbitrary writer
func NewWriterPublisher(out io.Writer, pretty bool) *StdoutPublisher {
	return &StdoutPublisher{out: out, pretty: pretty}
}

// Publish writes the message as one line (or one indented document)
func (p *StdoutPublisher) Publish(_ string, message []byte) error {
	if p.pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, message, "", "  "); err != nil {
			return err
		}
		message = buf.Bytes()
	}
	_, err := fmt.Fprintf(p.out, "%s\n", message)
	return err
}

// TrimStreams is a no-op for line output
func (p *StdoutPublisher) TrimStreams() error {
	return nil
}

// Close is a no-op for line output
func (p *StdoutPublisher) Close() error {
	return nil
}
