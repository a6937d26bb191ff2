// Package cellindex indexes the rows of a wide-column table into a SQL
// search store and answers predicate queries against them. A schema of
// mappers decides which columns are indexed and how; see package schema.
package cellindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nonibytes/cellindex/cellindex/column"
	"github.com/nonibytes/cellindex/cellindex/engine"
	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
	"github.com/nonibytes/cellindex/cellindex/ops"
	"github.com/nonibytes/cellindex/cellindex/planner"
	"github.com/nonibytes/cellindex/cellindex/query"
	"github.com/nonibytes/cellindex/cellindex/row"
	"github.com/nonibytes/cellindex/cellindex/schema"
	"github.com/nonibytes/cellindex/cellindex/storage"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlbuilder"
)

// Index represents an open index
type Index struct {
	adapter storage.Adapter
	db      *sql.DB
	table   row.Table
	current atomic.Pointer[published]
	opts    IndexOptions
	log     *zap.Logger
}

// published is the schema searches and writes run against. ApplySchema
// swaps it as a whole.
type published struct {
	schema     *schema.Schema
	schemaJSON []byte
}

// Create creates a new index of table with the given mappers
func Create(ctx context.Context, adapter storage.Adapter, spec schema.Spec, table row.Table, opts IndexOptions) (*Index, error) {
	opts = opts.withDefaults()
	s, err := schema.Build(spec, schema.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}
	if err := s.ValidateTable(table); err != nil {
		return nil, err
	}
	schemaJSON, err := s.JSON()
	if err != nil {
		return nil, cierrors.Wrap(ErrConfig, "encode schema", err)
	}
	tableJSON, err := json.Marshal(table.Spec())
	if err != nil {
		return nil, cierrors.Wrap(ErrConfig, "encode table", err)
	}

	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, cierrors.Wrap(ErrIO, "connect to database", err)
	}
	if err := adapter.CreateIndex(ctx, db, storage.IndexMeta{SchemaJSON: schemaJSON, TableJSON: tableJSON}); err != nil {
		db.Close()
		return nil, cierrors.Wrap(ErrSQL, "create index", err)
	}

	ix := newIndex(adapter, db, table, opts)
	ix.current.Store(&published{schema: s, schemaJSON: schemaJSON})
	ix.log.Info("index created", zap.String("index", adapter.IndexID()),
		zap.String("table", table.Name), zap.Strings("mappers", s.Names()))
	return ix, nil
}

// Open opens an existing index
func Open(ctx context.Context, adapter storage.Adapter, opts IndexOptions) (*Index, error) {
	opts = opts.withDefaults()
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, cierrors.Wrap(ErrIO, "connect to database", err)
	}

	meta, err := adapter.OpenIndex(ctx, db)
	if err != nil {
		db.Close()
		return nil, cierrors.Wrap(ErrSQL, "open index", err)
	}

	s, err := schema.Parse(meta.SchemaJSON, schema.WithLogger(opts.Logger))
	if err != nil {
		db.Close()
		return nil, err
	}
	var tableSpec row.TableSpec
	if len(meta.TableJSON) > 0 {
		if err := json.Unmarshal(meta.TableJSON, &tableSpec); err != nil {
			db.Close()
			return nil, cierrors.Wrap(ErrConfig, "decode stored table", err)
		}
	}
	table, err := tableSpec.Build()
	if err != nil {
		db.Close()
		return nil, cierrors.Wrap(ErrConfig, "stored table", err)
	}
	if err := s.ValidateTable(table); err != nil {
		db.Close()
		return nil, err
	}

	ix := newIndex(adapter, db, table, opts)
	ix.current.Store(&published{schema: s, schemaJSON: meta.SchemaJSON})
	ix.log.Info("index opened", zap.String("index", adapter.IndexID()), zap.String("table", table.Name))
	return ix, nil
}

func newIndex(adapter storage.Adapter, db *sql.DB, table row.Table, opts IndexOptions) *Index {
	return &Index{
		adapter: adapter,
		db:      db,
		table:   table,
		opts:    opts,
		log:     opts.Logger.With(zap.String("index", adapter.IndexID())),
	}
}

// Close closes the index
func (ix *Index) Close() error {
	if ix.db != nil {
		if err := ix.db.Close(); err != nil {
			return cierrors.Wrap(ErrIO, "close database", err)
		}
	}
	return ix.adapter.Close()
}

// Schema returns the mapper registry currently in use
func (ix *Index) Schema() *schema.Schema {
	return ix.current.Load().schema
}

// Table returns the indexed table
func (ix *Index) Table() row.Table {
	return ix.table
}

// Key renders the primary key of a row given as column-name keyed values
func (ix *Index) Key(values map[string]any) (string, error) {
	key, err := row.KeyFromMap(ix.table, values)
	if err != nil {
		return "", cierrors.Wrap(ErrData, "row key", err)
	}
	return key, nil
}

// RowFromMap builds a row of the indexed table from column-name keyed values
func (ix *Index) RowFromMap(values map[string]any) (row.Row, error) {
	r, err := row.FromMap(ix.table, values)
	if err != nil {
		return row.Row{}, cierrors.Wrap(ErrData, "row", err)
	}
	return r, nil
}

// RowFromJSON decodes a JSON object into a row of the indexed table
func (ix *Index) RowFromJSON(data []byte) (row.Row, error) {
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return row.Row{}, cierrors.Wrap(ErrData, "row json", err)
	}
	return ix.RowFromMap(values)
}

// prepared is a row encoded into a document, ready to be written.
type prepared struct {
	doc     *engine.Document
	encoded schema.Encoded
}

func prepare(s *schema.Schema, r row.Row) (prepared, error) {
	if len(r.Partition) == 0 {
		return prepared{}, cierrors.New(ErrData, "row has no partition key")
	}
	cols, err := column.FromRow(r)
	if err != nil {
		return prepared{}, kinded(ErrData, "decompose row", err)
	}
	data, err := json.Marshal(r.Data())
	if err != nil {
		return prepared{}, cierrors.Wrap(ErrData, "encode row", err)
	}
	doc := engine.NewDocument(r.Key(), data)
	enc, err := s.EncodeRow(doc, cols)
	if err != nil {
		return prepared{}, err
	}
	return prepared{doc: doc, encoded: enc}, nil
}

// IndexRow inserts or replaces the indexed form of r
func (ix *Index) IndexRow(ctx context.Context, r row.Row) (schema.Encoded, error) {
	p, err := prepare(ix.Schema(), r)
	if err != nil {
		return schema.Encoded{}, err
	}
	if err := ix.write(ctx, []prepared{p}); err != nil {
		return schema.Encoded{}, err
	}
	return p.encoded, nil
}

// IndexRows indexes rows in one transaction. Documents are built
// concurrently; nothing is written if any row fails.
func (ix *Index) IndexRows(ctx context.Context, rows []row.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	s := ix.Schema()
	docs := make([]prepared, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for i, r := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := prepare(s, r)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			docs[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ix.write(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (ix *Index) write(ctx context.Context, docs []prepared) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return cierrors.Wrap(ErrSQL, "begin transaction", err)
	}
	defer tx.Rollback()

	sqlt := ix.adapter.SQL()
	nowMS := ix.nowMS()
	for _, p := range docs {
		if _, _, err := ops.ExecutePut(ctx, tx, sqlt, p.doc, nowMS); err != nil {
			return cierrors.Wrap(ErrSQL, "execute put", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return cierrors.Wrap(ErrSQL, "commit", err)
	}
	for _, p := range docs {
		ix.opts.Metrics.RowIndexed(len(p.encoded.Skipped), len(p.encoded.Invalid))
	}
	return nil
}

// Get retrieves a stored row by key
func (ix *Index) Get(ctx context.Context, key string) (ItemView, error) {
	var itemID int64
	var dataJSON string
	var createdAt, updatedAt int64

	err := ix.db.QueryRowContext(ctx, ix.adapter.SQL().GetItemByKey, key).Scan(&itemID, &dataJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ItemView{}, cierrors.NotFoundError(key)
	}
	if err != nil {
		return ItemView{}, cierrors.Wrap(ErrSQL, "get item", err)
	}
	return ItemView{
		Key:  key,
		Data: json.RawMessage(dataJSON),
		Meta: ItemMeta{CreatedAtMS: createdAt, UpdatedAtMS: updatedAt},
	}, nil
}

// Delete removes a row by key and reports whether it existed
func (ix *Index) Delete(ctx context.Context, key string) (bool, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return false, cierrors.Wrap(ErrSQL, "begin transaction", err)
	}
	defer tx.Rollback()

	found, err := ops.DeleteByKey(ctx, tx, ix.adapter.SQL(), key)
	if err != nil {
		return false, cierrors.Wrap(ErrSQL, "delete item", err)
	}
	if err := tx.Commit(); err != nil {
		return false, cierrors.Wrap(ErrSQL, "commit", err)
	}
	if found {
		ix.opts.Metrics.RowsDeleted(1)
	}
	return found, nil
}

// DeleteWhere deletes the rows matching cond and returns their keys
func (ix *Index) DeleteWhere(ctx context.Context, cond query.Condition) ([]string, error) {
	_, compiled, builder, err := ix.compile(ix.Schema(), cond)
	if err != nil {
		return nil, err
	}
	keys, err := ops.DeleteWhere(ctx, ix.db, ix.adapter.SQL(), compiled, builder.Args())
	if err != nil {
		return nil, cierrors.Wrap(ErrSQL, "delete where", err)
	}
	ix.opts.Metrics.RowsDeleted(len(keys))
	return keys, nil
}

// compile translates cond into scored CTEs. The returned builder holds the
// arguments allocated so far.
func (ix *Index) compile(s *schema.Schema, cond query.Condition) (engine.Query, *planner.CompileOutput, *sqlbuilder.Builder, error) {
	qopts := query.Options{
		MinPrefixLen: ix.opts.MinPrefixLen,
		MaxTerms:     ix.opts.MaxTerms,
		MaxDepth:     ix.opts.MaxDepth,
	}
	if ix.opts.Metrics != nil {
		qopts.Observer = ix.opts.Metrics
	}
	q, err := query.Build(s, cond, qopts)
	if err != nil {
		return nil, nil, nil, err
	}
	builder := sqlbuilder.New(ix.adapter.PlaceholderStyle())
	compiled, err := planner.Compile(builder, q)
	if err != nil {
		return nil, nil, nil, cierrors.Wrap(ErrPredicate, "compile query", err)
	}
	return q, compiled, builder, nil
}

// rankMode resolves the rank field to the posting table its mapper writes.
func rankMode(s *schema.Schema, r RankMode) (planner.RankMode, error) {
	switch r.Kind {
	case RankDefault, "":
		return planner.RankMode{Kind: planner.RankDefault}, nil
	case RankRecency:
		return planner.RankMode{Kind: planner.RankRecency}, nil
	case RankNone:
		return planner.RankMode{Kind: planner.RankNone}, nil
	case RankField:
		if r.Field == "" {
			return planner.RankMode{}, cierrors.PredicateError("", "rank field is required")
		}
		m, ok := s.Resolve(r.Field)
		if !ok {
			return planner.RankMode{}, cierrors.UnknownFieldError(r.Field)
		}
		if m.ValueKind() == engine.RangeValues {
			return planner.RankMode{}, cierrors.TypeMismatch(r.Field, fmt.Sprintf("cannot sort by %s field", m.Kind()))
		}
		return planner.RankMode{Kind: planner.RankField, Field: r.Field, Values: m.ValueKind(), Desc: r.Desc}, nil
	}
	return planner.RankMode{}, cierrors.Predicatef("", "unknown rank mode %q", r.Kind)
}

func toOutputFieldKind(k OutputFieldSelectorKind) ops.OutputFieldKind {
	switch k {
	case ShowAll:
		return ops.ShowAll
	case ShowFields:
		return ops.ShowFields
	default:
		return ops.ShowNone
	}
}

// queryHash fingerprints the schema, condition and rank a cursor belongs to.
func queryHash(p *published, cond query.Condition, rank RankMode) (string, error) {
	condJSON, err := query.Encode(cond)
	if err != nil {
		return "", cierrors.Wrap(ErrPredicate, "encode condition", err)
	}
	rankJSON, err := json.Marshal(rank)
	if err != nil {
		return "", cierrors.Wrap(ErrInternal, "encode rank", err)
	}
	return ops.HashQuery(p.schemaJSON, condJSON, rankJSON), nil
}

// Search executes cond and returns one page of results
func (ix *Index) Search(ctx context.Context, cond query.Condition, sopts SearchOptions) (SearchResultPage, error) {
	defer ix.opts.Metrics.SearchDone(time.Now())

	p := ix.current.Load()
	rank, err := rankMode(p.schema, sopts.Rank)
	if err != nil {
		return SearchResultPage{}, err
	}
	_, compiled, builder, err := ix.compile(p.schema, cond)
	if err != nil {
		return SearchResultPage{}, err
	}
	hash, err := queryHash(p, cond, sopts.Rank)
	if err != nil {
		return SearchResultPage{}, err
	}

	result, err := ops.Search(ctx, ix.db, compiled, builder, ops.SearchOptions{
		Rank:      rank,
		Limit:     sopts.Limit,
		After:     sopts.After,
		Offset:    sopts.Offset,
		QueryHash: hash,
		Show: ops.OutputFieldSelector{
			Kind:   toOutputFieldKind(sopts.Show.Kind),
			Fields: sopts.Show.Fields,
		},
		Explain: sopts.Explain,
	})
	if errors.Is(err, ops.ErrInvalidCursor) {
		return SearchResultPage{}, cierrors.Wrap(ErrPredicate, "search", err)
	}
	if err != nil {
		return SearchResultPage{}, cierrors.Wrap(ErrSQL, "search", err)
	}

	page := SearchResultPage{
		Hits:         make([]Hit, 0, len(result.Hits)),
		Total:        result.Total,
		NextCursor:   result.NextCursor,
		HasMore:      result.HasMore,
		ExplainSQL:   result.ExplainSQL,
		ExplainSteps: result.ExplainSteps,
	}
	for _, h := range result.Hits {
		page.Hits = append(page.Hits, Hit{
			Key:   h.Key,
			Score: h.Score,
			Data:  h.Data,
			Meta:  ItemMeta{CreatedAtMS: h.CreatedAtMS, UpdatedAtMS: h.UpdatedAtMS},
		})
	}
	return page, nil
}

// Explain returns the engine query and SQL cond runs as, without running it
func (ix *Index) Explain(ctx context.Context, cond query.Condition, rank RankMode) (Explanation, error) {
	s := ix.Schema()
	rm, err := rankMode(s, rank)
	if err != nil {
		return Explanation{}, err
	}
	q, compiled, builder, err := ix.compile(s, cond)
	if err != nil {
		return Explanation{}, err
	}
	searchSQL, err := planner.BuildSearchSQL(compiled, rm, ops.DefaultLimit+1, 0, builder)
	if err != nil {
		return Explanation{}, cierrors.Wrap(ErrPredicate, "build search SQL", err)
	}
	return Explanation{
		Query: q.String(),
		SQL:   searchSQL,
		Steps: compiled.ExplainSteps,
		Args:  builder.Args(),
	}, nil
}

// where compiles an optional filter condition.
func (ix *Index) where(s *schema.Schema, cond query.Condition) (*planner.CompileOutput, *sqlbuilder.Builder, error) {
	if cond == nil {
		return nil, sqlbuilder.New(ix.adapter.PlaceholderStyle()), nil
	}
	_, compiled, builder, err := ix.compile(s, cond)
	if err != nil {
		return nil, nil, err
	}
	return compiled, builder, nil
}

// DiscoverValues lists the most frequent values of a keyword field, counted
// over the rows matching where (all rows when nil)
func (ix *Index) DiscoverValues(ctx context.Context, field string, where query.Condition, top int) ([]ValueCount, error) {
	s := ix.Schema()
	m, ok := s.Resolve(field)
	if !ok {
		return nil, cierrors.UnknownFieldError(field)
	}
	if m.ValueKind() != engine.KeywordValues {
		return nil, cierrors.TypeMismatch(field, fmt.Sprintf("%s fields have no discoverable values", m.Kind()))
	}
	if top <= 0 {
		top = DefaultDiscoverTop
	}
	filter, builder, err := ix.where(s, where)
	if err != nil {
		return nil, err
	}
	values, err := ops.DiscoverValues(ctx, ix.db, builder, field, filter, top)
	if err != nil {
		return nil, cierrors.Wrap(ErrSQL, "discover values", err)
	}
	return values, nil
}

// DiscoverFields returns an overview of every field holding values
func (ix *Index) DiscoverFields(ctx context.Context) ([]FieldOverview, error) {
	s := ix.Schema()
	fields, err := ops.DiscoverFields(ctx, ix.db, ix.adapter.PlaceholderStyle(), func(field string) (ops.FieldInfo, bool) {
		m, ok := s.Resolve(field)
		if !ok {
			return ops.FieldInfo{}, false
		}
		return ops.FieldInfo{Mapper: m.Name(), Type: string(m.Kind()), Values: m.ValueKind()}, true
	})
	if err != nil {
		return nil, cierrors.Wrap(ErrSQL, "discover fields", err)
	}
	return fields, nil
}

// Stats computes count, min, max, average and median of a number or date
// field over the rows matching where (all rows when nil)
func (ix *Index) Stats(ctx context.Context, field string, where query.Condition) (StatsResult, error) {
	s := ix.Schema()
	m, ok := s.Resolve(field)
	if !ok {
		return StatsResult{}, cierrors.UnknownFieldError(field)
	}
	kind := m.ValueKind()
	if kind != engine.NumberValues && kind != engine.DateValues {
		return StatsResult{}, cierrors.TypeMismatch(field, fmt.Sprintf("stats need a number or date field, not %s", m.Kind()))
	}
	table, err := planner.ValueTable(kind)
	if err != nil {
		return StatsResult{}, cierrors.Wrap(ErrInternal, "stats", err)
	}
	filter, builder, err := ix.where(s, where)
	if err != nil {
		return StatsResult{}, err
	}
	result, err := ops.Stats(ctx, ix.db, builder, table, field, filter)
	if err != nil {
		return StatsResult{}, cierrors.Wrap(ErrSQL, "stats", err)
	}
	return *result, nil
}

// Optimize prunes unused dictionary entries and lets the database refresh
// its statistics
func (ix *Index) Optimize(ctx context.Context) error {
	if err := ix.adapter.Optimize(ctx, ix.db); err != nil {
		return cierrors.Wrap(ErrSQL, "optimize", err)
	}
	return nil
}

// ApplySchema replaces the mapper registry. The new schema is validated
// against the table and stored before searches see it. Rows already indexed
// keep their old encoding until they are indexed again.
func (ix *Index) ApplySchema(ctx context.Context, spec schema.Spec) error {
	s, err := schema.Build(spec, schema.WithLogger(ix.opts.Logger))
	if err != nil {
		return err
	}
	if err := s.ValidateTable(ix.table); err != nil {
		return err
	}
	schemaJSON, err := s.JSON()
	if err != nil {
		return cierrors.Wrap(ErrConfig, "encode schema", err)
	}
	if err := ix.adapter.SaveSchema(ctx, ix.db, schemaJSON); err != nil {
		return cierrors.Wrap(ErrSQL, "save schema", err)
	}
	ix.current.Store(&published{schema: s, schemaJSON: schemaJSON})
	ix.log.Info("schema applied", zap.Strings("mappers", s.Names()))
	return nil
}

// Batch executes a batch of operations in one transaction
func (ix *Index) Batch(ctx context.Context, b Batch) (int, error) {
	if b.Empty() {
		return 0, nil
	}
	s := ix.Schema()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, cierrors.Wrap(ErrSQL, "begin transaction", err)
	}
	defer tx.Rollback()

	sqlt := ix.adapter.SQL()
	nowMS := ix.nowMS()

	count, deleted := 0, 0
	var written []prepared
	for _, op := range b.ops {
		switch op.Kind {
		case batchPut:
			p, err := prepare(s, op.Row)
			if err != nil {
				return count, err
			}
			if _, _, err := ops.ExecutePut(ctx, tx, sqlt, p.doc, nowMS); err != nil {
				return count, cierrors.Wrap(ErrSQL, "execute put", err)
			}
			written = append(written, p)
		case batchDelete:
			found, err := ops.DeleteByKey(ctx, tx, sqlt, op.Key)
			if err != nil {
				return count, cierrors.Wrap(ErrSQL, "delete item", err)
			}
			if !found {
				continue
			}
			deleted++
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return count, cierrors.Wrap(ErrSQL, "commit transaction", err)
	}
	for _, p := range written {
		ix.opts.Metrics.RowIndexed(len(p.encoded.Skipped), len(p.encoded.Invalid))
	}
	ix.opts.Metrics.RowsDeleted(deleted)
	return count, nil
}

// Adapter returns the underlying storage adapter
func (ix *Index) Adapter() storage.Adapter {
	return ix.adapter
}

// DB returns the underlying database connection (for advanced use)
func (ix *Index) DB() *sql.DB {
	return ix.db
}

func (ix *Index) nowMS() int64 {
	return ix.opts.Now().UnixMilli()
}
