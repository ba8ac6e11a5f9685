package ingest

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/lumberhq/lumberview/internal/broker"
	"github.com/lumberhq/lumberview/internal/model"
	"github.com/lumberhq/lumberview/internal/ndjson"
	"github.com/lumberhq/lumberview/internal/sqlworker/migrate"
)

const (
	insertLogSQL = `INSERT INTO logs (uid, branch, category, env, file, function, level, line, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertCustomSQL = `INSERT INTO custom (uid, key, value) VALUES (?, ?, ?)`
)

// Config holds optional parameters for the ingestor.
type Config struct {
	// AuthKey is forwarded as the Authorization header on the source fetch.
	AuthKey string
	Decoder ndjson.DecoderConfig
}

// Ingestor drives the stream decoder and persists every record through the
// query broker.
type Ingestor struct {
	broker *broker.Broker
	client *http.Client
	cfg    Config
}

// New creates an ingestor writing through b. A nil client falls back to
// http.DefaultClient.
func New(b *broker.Broker, client *http.Client, conf ...Config) *Ingestor {
	var cfg Config
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Ingestor{broker: b, client: client, cfg: cfg}
}

// Ingest streams the NDJSON source at url into the store. Writes are issued
// as records decode and are not awaited individually, so the decode loop
// never blocks on store IO. Ingest returns only after the decoder has finished AND
// every issued write has been applied, so a nil return means the store holds
// the full record set. A reader querying mid-ingest may observe a partial
// table.
//
// A transport error aborts ingestion; a single malformed line is skipped by
// the decoder and does not.
func (ing *Ingestor) Ingest(ctx context.Context, url string) error {
	dec, err := ndjson.Fetch(ctx, ing.client, url, ndjson.FetchConfig{
		AuthKey: ing.cfg.AuthKey,
		Decoder: ing.cfg.Decoder,
	})
	if err != nil {
		return err
	}

	var futures []*broker.Future
	records := 0
	for rec := range dec.Records() {
		futures = append(futures, ing.writeRecord(rec)...)
		records++
	}

	if dec.Err() != nil {
		// Best-effort: let writes already issued settle before reporting,
		// so a retried ingest starts from a quiet store.
		ing.await(ctx, futures)
		return fmt.Errorf("ingest: stream failed after %d records: %w", records, dec.Err())
	}

	if err := ing.await(ctx, futures); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	log.Printf("ingest: %d records persisted from %s", records, url)
	return nil
}

// writeRecord issues the normalized multi-table writes for one record: one
// logs row plus one custom row per key/value pair.
func (ing *Ingestor) writeRecord(rec model.LogRecord) []*broker.Future {
	futures := make([]*broker.Future, 0, 1+len(rec.Custom))
	futures = append(futures, ing.broker.Submit(broker.ModeFlat, insertLogSQL, []any{
		rec.UID, rec.Branch, rec.Category, rec.Env, rec.File,
		rec.Function, rec.Level, rec.Line, rec.Message, rec.Timestamp,
	}))
	for key, value := range rec.Custom {
		futures = append(futures, ing.broker.Submit(broker.ModeFlat, insertCustomSQL, []any{rec.UID, key, value}))
	}
	return futures
}

// await is the completion barrier: every accumulated write must settle
// before ingestion is declared done. The first write error wins; the rest
// are still drained.
func (ing *Ingestor) await(ctx context.Context, futures []*broker.Future) error {
	var firstErr error
	for _, f := range futures {
		if err := f.Err(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Reset drops and recreates the empty relations. It completes fully before
// returning, so a following Ingest never interleaves old and new data.
func (ing *Ingestor) Reset(ctx context.Context) error {
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS custom",
		"DROP TABLE IF EXISTS logs",
	} {
		if err := ing.broker.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ingest: reset: %w", err)
		}
	}

	stmts, err := migrate.BootstrapStatements()
	if err != nil {
		return fmt.Errorf("ingest: reset: %w", err)
	}
	for _, stmt := range stmts {
		if err := ing.broker.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ingest: reset: %w", err)
		}
	}
	return nil
}
