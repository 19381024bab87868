package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/entity"
)

var reviewColumns = []string{
	"id", "doc_hash", "issuer", "identifier", "reason", "confidence_raw",
	"confidence_label", "source", "filename", "sender", "detail", "created_at",
}

type ReviewRepository interface {
	// Enqueue stores item, replacing any earlier entry for the same document hash.
	// The stored row (with its stable ID) is returned.
	Enqueue(ctx context.Context, item *entity.ReviewItem) (*entity.ReviewItem, error)
	GetByDocHash(ctx context.Context, docHash string) (*entity.ReviewItem, error)
	List(ctx context.Context, since *time.Time) ([]*entity.ReviewItem, error)
	Remove(ctx context.Context, docHash string) error
}

type reviewRepository struct {
	db     *DB
	now    func() time.Time
	logger *slog.Logger
}

func NewReviewRepository(db *DB, logger *slog.Logger) ReviewRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &reviewRepository{db: db, now: time.Now, logger: logger}
}

func (r *reviewRepository) Enqueue(ctx context.Context, item *entity.ReviewItem) (*entity.ReviewItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = r.now()
	}
	var conf any
	if item.ConfidenceRaw != nil {
		conf = *item.ConfidenceRaw
	}
	q, args := entsql.Dialect(r.db.Dialect()).
		Insert(tableReviewItems).
		Columns(reviewColumns...).
		Values(
			item.ID.String(), item.DocHash, item.Issuer, item.Identifier, string(item.Reason), conf,
			string(item.ConfidenceLabel), string(item.Source), item.Filename, item.Sender, item.Detail, formatTS(item.CreatedAt),
		).
		OnConflict(
			entsql.ConflictColumns("doc_hash"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				for _, c := range reviewColumns {
					if c != "id" && c != "doc_hash" && c != "created_at" {
						u.SetExcluded(c)
					}
				}
			}),
		).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to enqueue review item", "doc_hash", item.DocHash, "reason", item.Reason, "error", err)
		return nil, err
	}
	stored, err := r.GetByDocHash(ctx, item.DocHash)
	if err != nil {
		return nil, err
	}
	r.logger.Info("review item queued", "id", stored.ID, "doc_hash", stored.DocHash, "reason", stored.Reason)
	return stored, nil
}

func (r *reviewRepository) GetByDocHash(ctx context.Context, docHash string) (*entity.ReviewItem, error) {
	s := entsql.Dialect(r.db.Dialect()).Select(reviewColumns...).From(entsql.Table(tableReviewItems))
	s.Where(entsql.EQ(s.C("doc_hash"), docHash)).Limit(1)
	items, err := r.query(ctx, s)
	if err != nil {
		r.logger.Error("failed to get review item", "doc_hash", docHash, "error", err)
		return nil, err
	}
	return first(items), nil
}

func (r *reviewRepository) List(ctx context.Context, since *time.Time) ([]*entity.ReviewItem, error) {
	s := entsql.Dialect(r.db.Dialect()).Select(reviewColumns...).From(entsql.Table(tableReviewItems))
	if since != nil {
		s.Where(entsql.GTE(s.C("created_at"), formatTS(*since)))
	}
	s.OrderBy(s.C("created_at"), s.C("id"))
	items, err := r.query(ctx, s)
	if err != nil {
		r.logger.Error("failed to list review items", "error", err)
		return nil, err
	}
	return items, nil
}

func (r *reviewRepository) Remove(ctx context.Context, docHash string) error {
	q, args := entsql.Dialect(r.db.Dialect()).
		Delete(tableReviewItems).
		Where(entsql.EQ("doc_hash", docHash)).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to remove review item", "doc_hash", docHash, "error", err)
		return err
	}
	return nil
}

func (r *reviewRepository) query(ctx context.Context, s *entsql.Selector) ([]*entity.ReviewItem, error) {
	q, args := s.Query()
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.ReviewItem
	for rows.Next() {
		var (
			item                          entity.ReviewItem
			id, reason, label, source, ts string
			conf                          sql.NullFloat64
		)
		if err := rows.Scan(&id, &item.DocHash, &item.Issuer, &item.Identifier, &reason, &conf,
			&label, &source, &item.Filename, &item.Sender, &item.Detail, &ts); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		item.ID = parsed
		item.Reason = constants.Reason(reason)
		item.ConfidenceLabel = constants.ConfidenceLabel(label)
		item.Source = constants.Source(source)
		item.CreatedAt = parseTS(ts)
		if conf.Valid {
			v := conf.Float64
			item.ConfidenceRaw = &v
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}
