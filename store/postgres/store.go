package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonwraymond/fragcache/fragment"
	"github.com/jonwraymond/fragcache/observe"
	"github.com/jonwraymond/fragcache/resilience"
)

// Table is the fully qualified records table.
const Table = "fragcache.fragment_records"

const uniqueViolation = "23505"

var columns = []string{"key", "name", "site_id", "user_id", "tokens"}

// Options configures a Store.
type Options struct {
	// SkipMigrations leaves the schema alone on Open.
	SkipMigrations bool

	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32

	// Executor guards every query. Nil uses DefaultExecutor.
	Executor *resilience.Executor

	Logger observe.Logger
}

// Store is a fragment.Store backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	exec   *resilience.Executor
	logger observe.Logger
	qb     sq.StatementBuilderType
}

// DefaultExecutor returns the executor used when Options.Executor is nil:
// a breaker that opens after five consecutive transport failures, a 2s
// per-attempt timeout, and up to three attempts for reads.
func DefaultExecutor() *resilience.Executor {
	return resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  5,
			ResetTimeout: 15 * time.Second,
			IsFailure:    isTransient,
		})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			Jitter:       true,
			RetryIf:      isTransient,
		})),
		resilience.WithTimeout(2*time.Second),
	)
}

// Open migrates the database at dsn (unless skipped) and connects a pool.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if !opts.SkipMigrations {
		if err := Migrate(dsn); err != nil {
			return nil, fmt.Errorf("%w: %w", fragment.ErrStoreUnavailable, err)
		}
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: open pool: %w", fragment.ErrStoreUnavailable, err)
	}
	return New(pool, opts), nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool, opts Options) *Store {
	if opts.Executor == nil {
		opts.Executor = DefaultExecutor()
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	return &Store{
		pool:   pool,
		exec:   opts.Executor,
		logger: opts.Logger,
		qb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Breaker returns the circuit breaker guarding the pool, or nil.
func (s *Store) Breaker() *resilience.CircuitBreaker {
	return s.exec.Breaker()
}

// Ping implements fragment.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.read(ctx, func(ctx context.Context) error {
		return s.pool.Ping(ctx)
	})
}

// GetOrCreate implements fragment.Store. A unique-violation on insert means
// another caller won the race; its row is returned with created=false.
func (s *Store) GetOrCreate(ctx context.Context, id fragment.Identity) (fragment.Record, bool, error) {
	rec, err := fragment.NewRecord(id)
	if err != nil {
		return fragment.Record{}, false, err
	}

	existing, found, err := s.get(ctx, rec.Key)
	if err != nil {
		return fragment.Record{}, false, err
	}
	if found {
		return existing, false, nil
	}

	err = s.insert(ctx, rec)
	if isUniqueViolation(err) {
		existing, found, err = s.get(ctx, rec.Key)
		if err != nil {
			return fragment.Record{}, false, err
		}
		if !found {
			return fragment.Record{}, false, fmt.Errorf("postgres: record %s vanished after conflicting insert", rec.Key)
		}
		return existing, false, nil
	}
	if err != nil {
		return fragment.Record{}, false, err
	}

	s.logger.Debug(ctx, "fragment record inserted",
		observe.F("fragment.name", rec.Name),
		observe.F("key", rec.Key),
	)
	return rec, true, nil
}

func (s *Store) get(ctx context.Context, key string) (fragment.Record, bool, error) {
	query, args, err := s.qb.Select(columns...).From(Table).Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return fragment.Record{}, false, err
	}

	var (
		rec   fragment.Record
		found bool
	)
	err = s.read(ctx, func(ctx context.Context) error {
		r, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		rec, found = r, true
		return nil
	})
	return rec, found, err
}

func (s *Store) insert(ctx context.Context, rec fragment.Record) error {
	tokens, err := encodeTokens(rec.Tokens)
	if err != nil {
		return err
	}
	query, args, err := s.qb.Insert(Table).
		Columns(columns...).
		Values(rec.Key, rec.Name, nullable(rec.Site), nullable(rec.User), tokens).
		ToSql()
	if err != nil {
		return err
	}
	return s.write(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, query, args...)
		return err
	})
}

// Find implements fragment.Store.
func (s *Store) Find(ctx context.Context, f fragment.Filter) ([]fragment.Record, error) {
	query, args, err := buildFindQuery(s.qb, f)
	if err != nil {
		return nil, err
	}

	var out []fragment.Record
	err = s.read(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements fragment.Store. Content caches are not touched.
func (s *Store) Delete(ctx context.Context, records []fragment.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.Key
	}
	query, args, err := s.qb.Delete(Table).Where(sq.Eq{"key": keys}).ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	err = s.write(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	return int(n), err
}

func buildFindQuery(qb sq.StatementBuilderType, f fragment.Filter) (string, []any, error) {
	q := qb.Select(columns...).From(Table)

	if f.Name != "" {
		q = q.Where(sq.Eq{"name": f.Name})
	}
	if len(f.Names) > 0 {
		q = q.Where(sq.Eq{"name": f.Names})
	}
	if f.Site != nil {
		q = q.Where(sq.Eq{"site_id": nullable(*f.Site)})
	}
	if f.User != nil {
		q = q.Where(sq.Eq{"user_id": nullable(*f.User)})
	}
	if f.Token != nil {
		probe, err := json.Marshal([]any{f.Token})
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", fragment.ErrInvalidToken, err)
		}
		q = q.Where(sq.Expr("tokens @> ?::jsonb", string(probe)))
	}
	if f.TokenContains != "" {
		q = q.Where(sq.ILike{"tokens::text": "%" + escapeLike(f.TokenContains) + "%"})
	}

	return q.OrderBy("name", "key").ToSql()
}

func (s *Store) read(ctx context.Context, op func(context.Context) error) error {
	return classify(ctx, s.exec.Execute(ctx, op))
}

func (s *Store) write(ctx context.Context, op func(context.Context) error) error {
	return classify(ctx, s.exec.ExecuteOnce(ctx, op))
}

// classify maps transport failures to fragment.ErrStoreUnavailable. Errors
// the server answered with, and the caller's own cancellation, pass through.
func classify(ctx context.Context, err error) error {
	if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		return err
	}
	if errors.Is(err, resilience.ErrCircuitOpen) || isTransient(err) {
		return fmt.Errorf("%w: %w", fragment.ErrStoreUnavailable, err)
	}
	return err
}

func isTransient(err error) bool {
	if err == nil || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, context.Canceled) {
		return false
	}
	var pgErr *pgconn.PgError
	return !errors.As(err, &pgErr)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanRecord(row pgx.Row) (fragment.Record, error) {
	var (
		rec        fragment.Record
		site, user *string
		tokens     []byte
	)
	if err := row.Scan(&rec.Key, &rec.Name, &site, &user, &tokens); err != nil {
		return fragment.Record{}, err
	}
	if site != nil {
		rec.Site = *site
	}
	if user != nil {
		rec.User = *user
	}
	var err error
	rec.Tokens, err = decodeTokens(tokens)
	return rec, err
}

func encodeTokens(tokens []any) (any, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fragment.ErrInvalidToken, err)
	}
	return string(data), nil
}

// decodeTokens keeps numbers as json.Number so re-derived canonical forms
// match the ones the tokens were stored under.
func decodeTokens(data []byte) ([]any, error) {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tokens []any
	if err := dec.Decode(&tokens); err != nil {
		return nil, fmt.Errorf("postgres: decode tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	return tokens, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func escapeLike(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	_ fragment.Store  = (*Store)(nil)
	_ fragment.Pinger = (*Store)(nil)
)
