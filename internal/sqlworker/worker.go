package sqlworker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lumberhq/lumberview/internal/sqlworker/migrate"

	_ "github.com/duckdb/duckdb-go/v2"
)

const (
	// DefaultRequestBuffer is the default request channel buffer size.
	DefaultRequestBuffer = 256

	// DefaultQueryTimeout bounds a single statement execution.
	DefaultQueryTimeout = 30 * time.Second
)

// Config holds tunable parameters for the store worker.
type Config struct {
	RequestBuffer int
	QueryTimeout  time.Duration
}

// Worker hosts the embedded DuckDB database in its own goroutine. If dbPath
// is empty an in-memory database is used. The worker accepts no request
// before a successful "open".
type Worker struct {
	dbPath       string
	queryTimeout time.Duration

	db        *sql.DB
	requests  chan Request
	responses chan Response
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// New creates a store worker for the database at dbPath and starts its
// serving goroutine.
func New(dbPath string, conf ...Config) *Worker {
	requestBuffer := DefaultRequestBuffer
	queryTimeout := DefaultQueryTimeout
	if len(conf) > 0 {
		if conf[0].RequestBuffer > 0 {
			requestBuffer = conf[0].RequestBuffer
		}
		if conf[0].QueryTimeout > 0 {
			queryTimeout = conf[0].QueryTimeout
		}
	}

	w := &Worker{
		dbPath:       dbPath,
		queryTimeout: queryTimeout,
		requests:     make(chan Request, requestBuffer),
		responses:    make(chan Response, requestBuffer),
		done:         make(chan struct{}),
	}
	w.wg.Add(1)
	go w.serve()
	return w
}

// Requests is the channel requests are sent on.
func (w *Worker) Requests() chan<- Request { return w.requests }

// Responses is the channel responses arrive on.
func (w *Worker) Responses() <-chan Response { return w.responses }

// Stop drains the worker and closes the database. In-flight requests get
// their responses before the response channel closes.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}

func (w *Worker) serve() {
	defer w.wg.Done()
	defer close(w.responses)
	defer func() {
		if w.db != nil {
			if err := w.db.Close(); err != nil {
				log.Printf("sqlworker: close: %v", err)
			}
		}
	}()

	for {
		select {
		case <-w.done:
			// Drain what is already queued so no sender is left pending.
			for {
				select {
				case req := <-w.requests:
					w.responses <- w.handle(req)
				default:
					return
				}
			}
		case req := <-w.requests:
			w.responses <- w.handle(req)
		}
	}
}

func (w *Worker) handle(req Request) Response {
	switch req.Action {
	case ActionOpen:
		return w.handleOpen(req)
	case ActionExec:
		return w.handleExec(req)
	default:
		return Response{ID: req.ID, Err: fmt.Sprintf("unknown action %q", req.Action)}
	}
}

func (w *Worker) handleOpen(req Request) Response {
	if req.ID != OpenID {
		return Response{ID: req.ID, Err: fmt.Sprintf("open must use reserved id %d", OpenID)}
	}
	if w.db != nil {
		return Response{ID: req.ID, Err: "store already open"}
	}

	dsn := ""
	if w.dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(w.dbPath), 0755); err != nil {
			return Response{ID: req.ID, Err: err.Error()}
		}
		dsn = w.dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return Response{ID: req.ID, Err: err.Error()}
	}
	if err := migrate.NewRunner(db).Run(); err != nil {
		db.Close()
		return Response{ID: req.ID, Err: err.Error()}
	}

	w.db = db
	return Response{ID: req.ID}
}

func (w *Worker) handleExec(req Request) Response {
	if w.db == nil {
		return Response{ID: req.ID, Err: "store not open"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.queryTimeout)
	defer cancel()

	if !returnsRows(req.SQL) {
		if _, err := w.db.ExecContext(ctx, req.SQL, req.Params...); err != nil {
			return Response{ID: req.ID, Err: err.Error()}
		}
		return Response{ID: req.ID}
	}

	rows, err := w.db.QueryContext(ctx, req.SQL, req.Params...)
	if err != nil {
		return Response{ID: req.ID, Err: err.Error()}
	}
	defer rows.Close()

	rs, err := collectRows(rows)
	if err != nil {
		return Response{ID: req.ID, Err: err.Error()}
	}
	if len(rs.Values) == 0 {
		// A query with zero rows and a statement with no result both come
		// back as empty Results; callers must not distinguish the two.
		return Response{ID: req.ID}
	}
	return Response{ID: req.ID, Results: []ResultSet{rs}}
}

// returnsRows reports whether the statement yields a result set.
func returnsRows(sqlText string) bool {
	head := strings.ToUpper(strings.TrimSpace(sqlText))
	return strings.HasPrefix(head, "SELECT") || strings.HasPrefix(head, "WITH")
}

func collectRows(rows *sql.Rows) (ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return ResultSet{}, err
	}

	rs := ResultSet{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ResultSet{}, err
		}
		rs.Values = append(rs.Values, values)
	}
	return rs, rows.Err()
}
