package dao

import (
	"context"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/internal/model"
	"github.com/notedapp/noted-sync/pkg/timex"

	"github.com/jinzhu/copier"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// noteRepository implements domain.LocalStore and domain.NoteEditor over the
// bundled sqlite note table. A real editing UI may substitute its own
// LocalStore; the sync engine only sees the interface.
type noteRepository struct {
	dao *Dao
}

// NewNoteRepository creates the local note store.
func NewNoteRepository(dao *Dao) domain.LocalStore {
	return &noteRepository{dao: dao}
}

// NewNoteEditor creates the local CRUD surface over the same table.
func NewNoteEditor(dao *Dao) domain.NoteEditor {
	return &noteRepository{dao: dao}
}

// toDomain converts a persisted note to the canonical shape.
func (r *noteRepository) toDomain(m *model.Note) (*domain.Note, error) {
	n := &domain.Note{}
	if err := copier.Copy(n, m); err != nil {
		return nil, err
	}
	n.CreatedAt = m.Ctime
	n.ModifiedAt = m.Mtime
	return n, nil
}

func (r *noteRepository) fromDomain(n *domain.Note) (*model.Note, error) {
	m := &model.Note{}
	if err := copier.Copy(m, n); err != nil {
		return nil, err
	}
	m.Ctime = n.CreatedAt
	m.Mtime = n.ModifiedAt
	return m, nil
}

// Snapshot returns every note including tombstones.
func (r *noteRepository) Snapshot(ctx context.Context) ([]domain.Note, error) {
	var rows []model.Note
	if err := r.dao.withCtx(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	notes := make([]domain.Note, 0, len(rows))
	for i := range rows {
		n, err := r.toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, nil
}

// ApplyRemoteChanges upserts accepted remote versions and removes notes the
// remote side no longer has. The accepted note's ModifiedAt is the remote
// timestamp and is stored as-is so future comparisons stay valid.
func (r *noteRepository) ApplyRemoteChanges(ctx context.Context, accepted []domain.Note, tombstonedLocalIDs []string) error {
	return r.dao.withCtx(ctx).Transaction(func(tx *gorm.DB) error {
		now := timex.Now()
		for i := range accepted {
			m, err := r.fromDomain(&accepted[i])
			if err != nil {
				return err
			}
			m.CreatedAt = now
			m.UpdatedAt = now
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"remote_id", "title", "body", "origin", "ctime", "mtime", "updated_at"}),
			}).Create(m).Error; err != nil {
				return err
			}
		}
		if len(tombstonedLocalIDs) > 0 {
			if err := tx.Where("id IN ?", tombstonedLocalIDs).Delete(&model.Note{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SetRemoteID records the remote identifier a push produced.
func (r *noteRepository) SetRemoteID(ctx context.Context, localID, remoteID string) error {
	return r.dao.withCtx(ctx).Model(&model.Note{}).
		Where("id = ?", localID).
		Updates(map[string]any{"remote_id": remoteID, "updated_at": timex.Now()}).Error
}

// PurgeTombstones removes tombstones whose deletion has been propagated.
func (r *noteRepository) PurgeTombstones(ctx context.Context, localIDs []string) error {
	if len(localIDs) == 0 {
		return nil
	}
	return r.dao.withCtx(ctx).
		Where("deleted = ? AND id IN ?", true, localIDs).
		Delete(&model.Note{}).Error
}

// NoteCreate inserts a new local note.
func (r *noteRepository) NoteCreate(ctx context.Context, n *domain.Note) error {
	m, err := r.fromDomain(n)
	if err != nil {
		return err
	}
	m.CreatedAt = timex.Now()
	m.UpdatedAt = m.CreatedAt
	return r.dao.withCtx(ctx).Create(m).Error
}

// NoteList returns the live (non-tombstoned) notes.
func (r *noteRepository) NoteList(ctx context.Context) ([]domain.Note, error) {
	var rows []model.Note
	if err := r.dao.withCtx(ctx).Where("deleted = ?", false).Order("mtime DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	notes := make([]domain.Note, 0, len(rows))
	for i := range rows {
		n, err := r.toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, nil
}

// NoteMarkDeleted tombstones a note so the deletion propagates on the next
// sync instead of silently vanishing.
func (r *noteRepository) NoteMarkDeleted(ctx context.Context, localID string, mtime int64) error {
	return r.dao.withCtx(ctx).Model(&model.Note{}).
		Where("id = ?", localID).
		Updates(map[string]any{"deleted": true, "mtime": mtime, "updated_at": timex.Now()}).Error
}

var (
	_ domain.LocalStore = (*noteRepository)(nil)
	_ domain.NoteEditor = (*noteRepository)(nil)
)
