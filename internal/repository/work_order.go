package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/workorder-intake/constants"
	"github.com/joseph-ayodele/workorder-intake/internal/entity"
	"github.com/joseph-ayodele/workorder-intake/internal/workorder"
)

var workOrderColumns = []string{
	"order_key", "issuer", "identifier", "status", "customer_name",
	"site_address", "description", "artifact_path", "source", "updated_at",
}

type WorkOrderRepository interface {
	// FindByKey returns nil, nil when no row has key.
	FindByKey(ctx context.Context, key workorder.Key) (*entity.WorkOrder, error)
	// FindByIdentifier returns the most recently updated row with identifier, or nil.
	FindByIdentifier(ctx context.Context, identifier string) (*entity.WorkOrder, error)
	Upsert(ctx context.Context, wo *entity.WorkOrder) error
	List(ctx context.Context, status constants.WorkOrderStatus) ([]*entity.WorkOrder, error)
	ListOpen(ctx context.Context) ([]*entity.WorkOrder, error)
}

type workOrderRepository struct {
	db     *DB
	now    func() time.Time
	logger *slog.Logger
}

func NewWorkOrderRepository(db *DB, logger *slog.Logger) WorkOrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &workOrderRepository{db: db, now: time.Now, logger: logger}
}

func (r *workOrderRepository) FindByKey(ctx context.Context, key workorder.Key) (*entity.WorkOrder, error) {
	s := entsql.Dialect(r.db.Dialect()).Select(workOrderColumns...).From(entsql.Table(tableWorkOrders))
	s.Where(entsql.EQ(s.C("order_key"), string(key))).Limit(1)
	rows, err := r.query(ctx, s)
	if err != nil {
		r.logger.Error("failed to find work order", "work_order_key", key, "error", err)
		return nil, err
	}
	return first(rows), nil
}

func (r *workOrderRepository) FindByIdentifier(ctx context.Context, identifier string) (*entity.WorkOrder, error) {
	s := entsql.Dialect(r.db.Dialect()).Select(workOrderColumns...).From(entsql.Table(tableWorkOrders))
	s.Where(entsql.EQ(s.C("identifier"), workorder.NormalizeIdentifier(identifier))).
		OrderBy(entsql.Desc(s.C("updated_at"))).
		Limit(1)
	rows, err := r.query(ctx, s)
	if err != nil {
		r.logger.Error("failed to find work order by identifier", "identifier", identifier, "error", err)
		return nil, err
	}
	return first(rows), nil
}

// Upsert writes every column of wo, replacing an existing row with the same key.
func (r *workOrderRepository) Upsert(ctx context.Context, wo *entity.WorkOrder) error {
	if wo.UpdatedAt.IsZero() {
		wo.UpdatedAt = r.now()
	}
	q, args := entsql.Dialect(r.db.Dialect()).
		Insert(tableWorkOrders).
		Columns(workOrderColumns...).
		Values(
			wo.Key, wo.Issuer, wo.Identifier, string(wo.Status), wo.CustomerName,
			wo.SiteAddress, wo.Description, wo.ArtifactPath, string(wo.Source), formatTS(wo.UpdatedAt),
		).
		OnConflict(entsql.ConflictColumns("order_key"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to upsert work order", "work_order_key", wo.Key, "error", err)
		return err
	}
	r.logger.Debug("work order upserted", "work_order_key", wo.Key, "status", wo.Status)
	return nil
}

func (r *workOrderRepository) List(ctx context.Context, status constants.WorkOrderStatus) ([]*entity.WorkOrder, error) {
	s := entsql.Dialect(r.db.Dialect()).Select(workOrderColumns...).From(entsql.Table(tableWorkOrders))
	if status != "" {
		s.Where(entsql.EQ(s.C("status"), string(status)))
	}
	s.OrderBy(s.C("issuer"), s.C("identifier"))
	rows, err := r.query(ctx, s)
	if err != nil {
		r.logger.Error("failed to list work orders", "status", status, "error", err)
		return nil, err
	}
	return rows, nil
}

func (r *workOrderRepository) ListOpen(ctx context.Context) ([]*entity.WorkOrder, error) {
	return r.List(ctx, constants.WorkOrderOpen)
}

func (r *workOrderRepository) query(ctx context.Context, s *entsql.Selector) ([]*entity.WorkOrder, error) {
	q, args := s.Query()
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.WorkOrder
	for rows.Next() {
		var (
			wo                entity.WorkOrder
			status, source, ts string
		)
		if err := rows.Scan(&wo.Key, &wo.Issuer, &wo.Identifier, &status, &wo.CustomerName,
			&wo.SiteAddress, &wo.Description, &wo.ArtifactPath, &source, &ts); err != nil {
			return nil, err
		}
		wo.Status = constants.WorkOrderStatus(status)
		wo.Source = constants.Source(source)
		wo.UpdatedAt = parseTS(ts)
		out = append(out, &wo)
	}
	return out, rows.Err()
}

func first[T any](rows []*T) *T {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}
