package records

import (
	"context"

	"github.com/joseph-ayodele/workorder-intake/internal/entity"
	"github.com/joseph-ayodele/workorder-intake/internal/repository"
	"github.com/joseph-ayodele/workorder-intake/internal/workorder"
)

// Finder is the read side of the work-order store.
type Finder interface {
	FindByKey(ctx context.Context, key workorder.Key) (*entity.WorkOrder, error)
	FindByIdentifier(ctx context.Context, identifier string) (*entity.WorkOrder, error)
}

var _ Finder = (repository.WorkOrderRepository)(nil)

// Resolve finds the stored record for key: by key first, then by the identifier
// alone. The second pass covers keys built before issuer normalization changed;
// Writer.Upsert adopts the returned record's key instead of creating a second row.
// Decisions never go through it (see ExistenceLookup).
func Resolve(ctx context.Context, f Finder, key workorder.Key) (*entity.WorkOrder, error) {
	if key == "" {
		return nil, nil
	}
	wo, err := f.FindByKey(ctx, key)
	if err != nil || wo != nil {
		return wo, err
	}
	_, identifier := key.Split()
	if identifier == "" {
		return nil, nil
	}
	return f.FindByIdentifier(ctx, identifier)
}

// ExistenceLookup answers decision lookups from the work-order store. It matches the
// full key only: an identifier stored under another issuer is not evidence that the
// document belongs to that record.
type ExistenceLookup struct {
	finder Finder
}

func NewExistenceLookup(f Finder) *ExistenceLookup {
	return &ExistenceLookup{finder: f}
}

func (l *ExistenceLookup) Lookup(ctx context.Context, key workorder.Key) (workorder.Key, error) {
	if key == "" {
		return "", nil
	}
	wo, err := l.finder.FindByKey(ctx, key)
	if err != nil || wo == nil {
		return "", err
	}
	return workorder.Key(wo.Key), nil
}
