package dao

import (
	"context"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/internal/model"
	"github.com/notedapp/noted-sync/pkg/timex"

	"github.com/jinzhu/copier"
	"gorm.io/gorm/clause"
)

// mappingRepository implements domain.MappingRepository.
type mappingRepository struct {
	dao *Dao
}

// NewMappingRepository creates the sync mapping store.
func NewMappingRepository(dao *Dao) domain.MappingRepository {
	return &mappingRepository{dao: dao}
}

// ListByAccount returns every mapping row for the account.
func (r *mappingRepository) ListByAccount(ctx context.Context, account string) ([]domain.SyncMapping, error) {
	var rows []model.SyncMapping
	if err := r.dao.withCtx(ctx).Where("account = ?", account).Find(&rows).Error; err != nil {
		return nil, err
	}

	mappings := make([]domain.SyncMapping, 0, len(rows))
	for i := range rows {
		m := domain.SyncMapping{}
		if err := copier.Copy(&m, &rows[i]); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

// Upsert writes a mapping row. Callers invoke this only after the note's
// remote operation succeeded, never before.
func (r *mappingRepository) Upsert(ctx context.Context, m *domain.SyncMapping) error {
	row := &model.SyncMapping{}
	if err := copier.Copy(row, m); err != nil {
		return err
	}
	row.UpdatedAt = timex.Now()
	return r.dao.withCtx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}, {Name: "local_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"remote_id", "last_synced_modified_at", "updated_at"}),
	}).Create(row).Error
}

// Delete removes a mapping row.
func (r *mappingRepository) Delete(ctx context.Context, account, localID string) error {
	return r.dao.withCtx(ctx).
		Where("account = ? AND local_id = ?", account, localID).
		Delete(&model.SyncMapping{}).Error
}

var _ domain.MappingRepository = (*mappingRepository)(nil)
