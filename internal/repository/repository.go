// Package repository implements CRUD over the persisted entities: one
// generic Repository and a thin, entity-specific repository per model.
package repository

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/AltMur/internal/events"
	"github.com/Gopher0727/AltMur/internal/metrics"
	"github.com/Gopher0727/AltMur/internal/models"
	"github.com/Gopher0727/AltMur/internal/schema"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

// Fields maps field names to values. A name is either a column name
// ("first_name") or a Go field name ("FirstName").
type Fields = map[string]any

// Page bounds a listing. Zero values mean no limit and no offset.
type Page struct {
	Limit  int
	Offset int
}

// ListOptions orders and bounds a filtered listing. OrderBy defaults to the
// primary key.
type ListOptions struct {
	Page
	OrderBy string
	Desc    bool
}

// Cache is a read-through store for single entities keyed by primary key.
// Set fills the cache after a database read and must refuse the fill when
// the row was evicted, or its entity invalidated, since the read began.
// Delete evicts one row. Invalidate drops every row of the given entities.
type Cache interface {
	Get(ctx context.Context, entity string, id any, dst any) (bool, error)
	Set(ctx context.Context, entity string, id any, value any) error
	Delete(ctx context.Context, entity string, id any) error
	Invalidate(ctx context.Context, entities ...string) error
}

// Notifier receives one event per committed mutation.
type Notifier interface {
	Notify(ctx context.Context, change events.Change) error
}

type options struct {
	log      *logger.Logger
	cache    Cache
	notifier Notifier
	pk       string
}

type Option func(*options)

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCache enables the read-through cache for GetByID. It is bypassed
// inside transactions. Mutations evict their own row after commit, and a
// delete also invalidates every entity its foreign keys cascade to.
func WithCache(c Cache) Option {
	return func(o *options) { o.cache = c }
}

func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithPrimaryKey keys the repository on the named column instead of the
// entity's declared primary key. It only applies to New; NewSet rejects it.
func WithPrimaryKey(name string) Option {
	return func(o *options) { o.pk = name }
}

var warnedKeys sync.Map

// Repository performs CRUD for entity type T over one gorm session.
//
// Every mutation is its own transaction. On a session that is already inside
// a transaction the mutation becomes a savepoint, so a failed call never
// leaves partial writes behind and the outer transaction decides durability.
// Reads run without a transaction. Not-found is a nil result, never an error.
type Repository[T any] struct {
	db       *gorm.DB
	desc     *schema.Descriptor
	log      *logger.Logger
	cache    Cache
	notifier Notifier
}

// New builds a repository for T bound to db.
func New[T any](db *gorm.DB, opts ...Option) (*Repository[T], error) {
	o := options{log: logger.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		desc *schema.Descriptor
		err  error
	)
	if o.pk != "" {
		desc, err = schema.DescribeWithKey[T](o.pk)
	} else {
		desc, err = schema.Describe[T]()
	}
	if err != nil {
		return nil, err
	}

	log := o.log.WithFields(zap.String("entity", desc.Entity))
	if ignored := desc.IgnoredKeys(); len(ignored) > 0 {
		if _, loaded := warnedKeys.LoadOrStore(desc.Entity, true); !loaded {
			log.Warn("composite primary key is not supported, using the first column",
				zap.String("primary_key", desc.PrimaryKey()),
				zap.Strings("ignored", ignored),
			)
		}
	}

	return &Repository[T]{
		db:       db,
		desc:     desc,
		log:      log,
		cache:    o.cache,
		notifier: o.notifier,
	}, nil
}

// Descriptor exposes the resolved entity metadata.
func (r *Repository[T]) Descriptor() *schema.Descriptor {
	return r.desc
}

func (r *Repository[T]) session(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *Repository[T]) inTransaction() bool {
	_, ok := r.db.Statement.ConnPool.(gorm.TxCommitter)
	return ok
}

// GetByID returns the row with primary key id, or nil.
func (r *Repository[T]) GetByID(ctx context.Context, id any) (entity *T, err error) {
	defer r.observe("get_by_id", time.Now(), &err)

	useCache := r.cache != nil && !r.inTransaction()
	if useCache {
		var cached T
		hit, cerr := r.cache.Get(ctx, r.desc.Entity, id, &cached)
		if cerr != nil {
			r.log.WarnContext(ctx, "cache lookup failed", zap.Any("id", id), zap.Error(cerr))
		}
		metrics.ObserveCacheLookup(r.desc.Entity, hit)
		if hit {
			return &cached, nil
		}
	}

	entity, err = r.first(ctx, r.session(ctx), r.desc.KeyEq(id))
	if err != nil {
		return nil, r.fail(ctx, "get_by_id", err)
	}
	if entity != nil && useCache {
		if cerr := r.cache.Set(ctx, r.desc.Entity, id, entity); cerr != nil {
			r.log.WarnContext(ctx, "cache fill failed", zap.Any("id", id), zap.Error(cerr))
		}
	}
	return entity, nil
}

// GetAll returns every row in database order, optionally paginated.
func (r *Repository[T]) GetAll(ctx context.Context, page Page) (entities []T, err error) {
	defer r.observe("get_all", time.Now(), &err)

	if err = paginate(r.session(ctx), page).Find(&entities).Error; err != nil {
		return nil, r.fail(ctx, "get_all", err)
	}
	return entities, nil
}

// GetByField returns the row whose field equals value, or nil. When several
// rows match, the one with the lowest primary key wins.
func (r *Repository[T]) GetByField(ctx context.Context, name string, value any) (entity *T, err error) {
	defer r.observe("get_by_field", time.Now(), &err)

	if _, err = r.desc.Field(name); err != nil {
		return nil, err
	}
	exprs := r.desc.Filter(Fields{name: value})
	entity, err = r.first(ctx, r.session(ctx).Order(r.orderBy(r.desc.PrimaryKey(), false)), exprs...)
	if err != nil {
		return nil, r.fail(ctx, "get_by_field", err)
	}
	return entity, nil
}

// GetByFields returns the rows matching every filter. Filters naming unknown
// fields are ignored.
func (r *Repository[T]) GetByFields(ctx context.Context, filters Fields) (entities []T, err error) {
	defer r.observe("get_by_fields", time.Now(), &err)

	if err = where(r.session(ctx), r.desc.Filter(filters)).Find(&entities).Error; err != nil {
		return nil, r.fail(ctx, "get_by_fields", err)
	}
	return entities, nil
}

// List is GetByFields with ordering and pagination.
func (r *Repository[T]) List(ctx context.Context, filters Fields, opts ListOptions) (entities []T, err error) {
	defer r.observe("list", time.Now(), &err)

	column := r.desc.PrimaryKey()
	if opts.OrderBy != "" {
		if column, err = r.desc.Field(opts.OrderBy); err != nil {
			return nil, err
		}
	}

	db := where(r.session(ctx), r.desc.Filter(filters)).Order(r.orderBy(column, opts.Desc))
	if column != r.desc.PrimaryKey() {
		db = db.Order(r.orderBy(r.desc.PrimaryKey(), opts.Desc))
	}
	if err = paginate(db, opts.Page).Find(&entities).Error; err != nil {
		return nil, r.fail(ctx, "list", err)
	}
	return entities, nil
}

// Count returns the number of rows matching every filter. Filters naming
// unknown fields are ignored.
func (r *Repository[T]) Count(ctx context.Context, filters Fields) (n int64, err error) {
	defer r.observe("count", time.Now(), &err)

	if err = where(r.session(ctx).Model(new(T)), r.desc.Filter(filters)).Count(&n).Error; err != nil {
		return 0, r.fail(ctx, "count", err)
	}
	return n, nil
}

// Exists reports whether a row with primary key id exists.
func (r *Repository[T]) Exists(ctx context.Context, id any) (ok bool, err error) {
	defer r.observe("exists", time.Now(), &err)

	var n int64
	if err = r.session(ctx).Model(new(T)).Where(r.desc.KeyEq(id)).Count(&n).Error; err != nil {
		return false, r.fail(ctx, "exists", err)
	}
	return n > 0, nil
}

// Create builds an entity from fields, persists it and returns the stored
// row, including generated keys, timestamps and defaults.
func (r *Repository[T]) Create(ctx context.Context, fields Fields) (entity *T, err error) {
	defer r.observe("create", time.Now(), &err)

	entity = new(T)
	if d, ok := any(entity).(models.Defaulter); ok {
		d.ApplyDefaults()
	}
	if err = r.desc.Assign(ctx, entity, fields); err != nil {
		return nil, err
	}
	return r.insert(ctx, "create", entity)
}

// CreateFromModel persists entity as given and returns the stored row. The
// instance is refreshed with the stored values.
func (r *Repository[T]) CreateFromModel(ctx context.Context, entity *T) (created *T, err error) {
	defer r.observe("create_from_model", time.Now(), &err)

	if entity == nil {
		return nil, &SchemaError{Entity: r.desc.Entity, Reason: schema.ReasonWrongEntity + ": nil"}
	}
	if created, err = r.insert(ctx, "create_from_model", entity); err != nil {
		return nil, err
	}
	*entity = *created
	return created, nil
}

func (r *Repository[T]) insert(ctx context.Context, op string, entity *T) (*T, error) {
	var (
		created *T
		id      any
	)
	err := r.session(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(entity).Error; err != nil {
			return err
		}
		var err error
		if id, _, err = r.desc.PrimaryValue(ctx, entity); err != nil {
			return err
		}
		created, err = r.first(ctx, tx, r.desc.KeyEq(id))
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, op, err)
	}
	r.committed(ctx, events.OpCreate, id)
	return created, nil
}

// Update applies a patch to the row with primary key id and returns the
// updated row, or nil when no row has that key. Only the entity's patchable
// fields may be set.
func (r *Repository[T]) Update(ctx context.Context, id any, patch Fields) (entity *T, err error) {
	defer r.observe("update", time.Now(), &err)

	columns, err := r.desc.Patch(patch)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return r.GetByID(ctx, id)
	}

	err = r.session(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(new(T)).Where(r.desc.KeyEq(id)).Updates(columns)
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		var err error
		entity, err = r.first(ctx, tx, r.desc.KeyEq(id))
		return err
	})
	if err != nil {
		return nil, r.fail(ctx, "update", err)
	}
	if entity != nil {
		r.committed(ctx, events.OpUpdate, id)
	}
	return entity, nil
}

// Delete removes the row with primary key id and reports whether one was
// removed.
func (r *Repository[T]) Delete(ctx context.Context, id any) (deleted bool, err error) {
	defer r.observe("delete", time.Now(), &err)
	return r.delete(ctx, "delete", id)
}

// DeleteByModel removes the row of an already loaded entity.
func (r *Repository[T]) DeleteByModel(ctx context.Context, entity *T) (err error) {
	defer r.observe("delete_by_model", time.Now(), &err)

	if entity == nil {
		return &SchemaError{Entity: r.desc.Entity, Reason: schema.ReasonWrongEntity + ": nil"}
	}
	id, zero, err := r.desc.PrimaryValue(ctx, entity)
	if err != nil {
		return err
	}
	if zero {
		return &SchemaError{Entity: r.desc.Entity, Field: r.desc.PrimaryKey(), Reason: schema.ReasonZeroPrimaryID}
	}
	_, err = r.delete(ctx, "delete_by_model", id)
	return err
}

func (r *Repository[T]) delete(ctx context.Context, op string, id any) (bool, error) {
	var affected int64
	err := r.session(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(r.desc.KeyEq(id)).Delete(new(T))
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, r.fail(ctx, op, err)
	}
	if affected > 0 {
		r.committed(ctx, events.OpDelete, id)
	}
	return affected > 0, nil
}

// first returns the first row matching exprs, or nil.
func (r *Repository[T]) first(ctx context.Context, db *gorm.DB, exprs ...clause.Expression) (*T, error) {
	var rows []T
	if err := where(db.WithContext(ctx), exprs).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// committed runs the post-commit side effects of a mutation: cache
// invalidation and the change event. Inside a transaction that carries an
// outbox they wait for the outer commit.
func (r *Repository[T]) committed(ctx context.Context, op events.Op, id any) {
	if r.cache == nil && r.notifier == nil {
		return
	}

	change := events.Change{
		Entity:  r.desc.Entity,
		Table:   r.desc.Table,
		Op:      op,
		ID:      id,
		TraceID: logger.GetTraceID(ctx),
		At:      time.Now().UTC(),
	}
	run := func() {
		// 提交已完成，这里的失败只记录日志
		r.evict(ctx, op, id)
		if r.notifier != nil {
			err := r.notifier.Notify(ctx, change)
			metrics.ObserveChangeEvent(r.desc.Entity, err)
			if err != nil {
				r.log.WarnContext(ctx, "change notification failed",
					zap.String("op", string(op)), zap.Any("id", id), zap.Error(err))
			}
		}
	}

	if ob := events.OutboxFrom(r.db.Statement.Context); ob != nil && r.inTransaction() {
		r.evict(ctx, op, id)
		ob.Defer(run)
		return
	}
	run()
}

// evict drops the cache entries a mutation made stale. A new row has none.
func (r *Repository[T]) evict(ctx context.Context, op events.Op, id any) {
	if r.cache == nil || op == events.OpCreate {
		return
	}
	if err := r.cache.Delete(ctx, r.desc.Entity, id); err != nil {
		r.log.WarnContext(ctx, "cache invalidation failed", zap.Any("id", id), zap.Error(err))
	}
	if op != events.OpDelete {
		return
	}
	if deps := r.desc.Dependents(); len(deps) > 0 {
		if err := r.cache.Invalidate(ctx, deps...); err != nil {
			r.log.WarnContext(ctx, "cache invalidation failed", zap.Strings("entities", deps), zap.Error(err))
		}
	}
}

// fail classifies, logs and returns a database failure.
func (r *Repository[T]) fail(ctx context.Context, op string, err error) error {
	err = wrapError(op, r.desc.Entity, err)
	var kind string
	if dbErr, ok := err.(*DatabaseError); ok {
		kind = dbErr.Kind.String()
	}
	r.log.ErrorContext(ctx, "repository operation failed",
		zap.String("op", op),
		zap.String("kind", kind),
		zap.Error(err),
	)
	return err
}

func (r *Repository[T]) observe(op string, start time.Time, err *error) {
	metrics.ObserveRepositoryOp(r.desc.Entity, op, outcome(*err), time.Since(start))
}

func (r *Repository[T]) orderBy(column string, desc bool) clause.OrderByColumn {
	return clause.OrderByColumn{
		Column: clause.Column{Table: clause.CurrentTable, Name: column},
		Desc:   desc,
	}
}

func where(db *gorm.DB, exprs []clause.Expression) *gorm.DB {
	if len(exprs) == 0 {
		return db
	}
	return db.Clauses(clause.Where{Exprs: exprs})
}

func paginate(db *gorm.DB, page Page) *gorm.DB {
	if page.Offset > 0 {
		db = db.Offset(page.Offset)
	}
	if page.Limit > 0 {
		db = db.Limit(page.Limit)
	}
	return db
}
