package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// decoder turns a server-sent event byte stream into content tokens.
// Bytes after the last newline are held until more data arrives or Flush.
type decoder struct {
	buf     []byte
	content strings.Builder
	emit    func(string)
}

func newDecoder(emit func(string)) *decoder {
	return &decoder{emit: emit}
}

// Feed appends p and processes every complete line.
func (d *decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		d.line(d.buf[start : start+i])
		start += i + 1
	}
	d.buf = append(d.buf[:0], d.buf[start:]...)
}

// Flush processes whatever partial line remains.
func (d *decoder) Flush() {
	if len(d.buf) > 0 {
		d.line(d.buf)
		d.buf = d.buf[:0]
	}
}

// Content returns everything emitted so far.
func (d *decoder) Content() string {
	return d.content.String()
}

func (d *decoder) line(raw []byte) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 || !bytes.HasPrefix(line, dataPrefix) {
		return
	}
	payload := bytes.TrimPrefix(line[len(dataPrefix):], []byte(" "))
	if bytes.Equal(payload, doneMarker) {
		return
	}

	var chunk chatChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return
	}
	if len(chunk.Choices) == 0 {
		return
	}
	if tok := chunk.Choices[0].Delta.Content; tok != "" {
		d.content.WriteString(tok)
		if d.emit != nil {
			d.emit(tok)
		}
	}
}
