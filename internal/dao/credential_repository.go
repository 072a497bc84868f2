package dao

import (
	"context"
	"errors"

	"github.com/notedapp/noted-sync/internal/domain"
	"github.com/notedapp/noted-sync/internal/model"
	"github.com/notedapp/noted-sync/pkg/code"
	"github.com/notedapp/noted-sync/pkg/timex"

	"github.com/jinzhu/copier"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// credentialRepository implements domain.CredentialRepository.
type credentialRepository struct {
	dao *Dao
}

// NewCredentialRepository creates the credential store.
func NewCredentialRepository(dao *Dao) domain.CredentialRepository {
	return &credentialRepository{dao: dao}
}

// Get returns the stored credential for an account.
func (r *credentialRepository) Get(ctx context.Context, account string) (*domain.Credential, error) {
	var row model.Credential
	err := r.dao.withCtx(ctx).Where("account = ?", account).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, code.ErrNotConnected.WithDetails(account)
	}
	if err != nil {
		return nil, err
	}

	c := &domain.Credential{}
	if err := copier.Copy(c, &row); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns every stored credential.
func (r *credentialRepository) List(ctx context.Context) ([]domain.Credential, error) {
	var rows []model.Credential
	if err := r.dao.withCtx(ctx).Order("account").Find(&rows).Error; err != nil {
		return nil, err
	}

	creds := make([]domain.Credential, 0, len(rows))
	for i := range rows {
		c := domain.Credential{}
		if err := copier.Copy(&c, &rows[i]); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, nil
}

// Save upserts the credential for an account.
func (r *credentialRepository) Save(ctx context.Context, c *domain.Credential) error {
	row := &model.Credential{}
	if err := copier.Copy(row, c); err != nil {
		return err
	}
	now := timex.Now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return r.dao.withCtx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "access_token_expiry", "user_name", "user_email", "updated_at"}),
	}).Create(row).Error
}

// Delete removes the stored credential for an account.
func (r *credentialRepository) Delete(ctx context.Context, account string) error {
	return r.dao.withCtx(ctx).Where("account = ?", account).Delete(&model.Credential{}).Error
}

var _ domain.CredentialRepository = (*credentialRepository)(nil)
