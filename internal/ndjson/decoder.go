package ndjson

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"

	"github.com/lumberhq/lumberview/internal/model"
)

const (
	// DefaultChunkSize is the read size for each pass over the source stream.
	DefaultChunkSize = 64 * 1024

	// DefaultRecordBuffer is the default channel buffer size for decoded records.
	DefaultRecordBuffer = 1024
)

// DecoderConfig holds tunable parameters for the stream decoder.
type DecoderConfig struct {
	ChunkSize    int
	RecordBuffer int
}

// Decoder turns a chunked NDJSON byte stream into a sequence of LogRecords.
//
// Chunk boundaries carry no meaning: a partial trailing line is carried over
// into the next chunk, so records split across reads are reassembled before
// parsing. Records are emitted as soon as their line is complete, not at end
// of stream. The record channel closing is the completion signal; it is
// strictly ordered after the last emission. Err reports a transport error
// and is valid only after the channel has closed.
type Decoder struct {
	records chan model.LogRecord
	cancel  context.CancelFunc
	err     error
}

// NewDecoder starts decoding r in a background goroutine. If r is an
// io.Closer it is closed when decoding finishes.
func NewDecoder(ctx context.Context, r io.Reader, conf ...DecoderConfig) *Decoder {
	chunkSize := DefaultChunkSize
	recordBuffer := DefaultRecordBuffer
	if len(conf) > 0 {
		if conf[0].ChunkSize > 0 {
			chunkSize = conf[0].ChunkSize
		}
		if conf[0].RecordBuffer > 0 {
			recordBuffer = conf[0].RecordBuffer
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	d := &Decoder{
		records: make(chan model.LogRecord, recordBuffer),
		cancel:  cancel,
	}
	go d.read(ctx, r, chunkSize)
	return d
}

// Records returns the decoded record stream. The channel closes exactly once,
// after the final record (if any) has been emitted.
func (d *Decoder) Records() <-chan model.LogRecord { return d.records }

// Err returns the transport error that ended the stream, or nil for a clean
// end-of-data. Only valid after Records has closed.
func (d *Decoder) Err() error { return d.err }

// Stop abandons decoding. Records already emitted remain valid; no further
// emissions follow once the channel closes.
func (d *Decoder) Stop() { d.cancel() }

func (d *Decoder) read(ctx context.Context, r io.Reader, chunkSize int) {
	defer close(d.records)
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}

	var carry string
	buf := make([]byte, chunkSize)

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := r.Read(buf)
		if n > 0 {
			carry = d.emitComplete(ctx, carry+string(buf[:n]))
		}
		if err == io.EOF {
			// The carry-over tail, if any, is the final record.
			if carry != "" {
				d.emitLine(ctx, carry)
			}
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				d.err = err
			}
			return
		}
	}
}

// emitComplete splits the buffer on newlines, emits every complete fragment
// and returns the incomplete tail as the new carry-over buffer.
func (d *Decoder) emitComplete(ctx context.Context, buffer string) string {
	parts := strings.Split(buffer, "\n")
	tail := parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		if !d.emitLine(ctx, line) {
			return ""
		}
	}
	return tail
}

// emitLine parses one fragment and sends the record downstream. A parse
// failure is logged and skipped; it never ends the stream. Returns false
// only when the context is done.
func (d *Decoder) emitLine(ctx context.Context, line string) bool {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return true
	}

	var rec model.LogRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		log.Printf("ndjson: skipping malformed line (%.80s): %v", line, err)
		return true
	}
	if rec.Custom == nil {
		rec.Custom = map[string]string{}
	}

	select {
	case d.records <- rec:
		return true
	case <-ctx.Done():
		return false
	}
}
