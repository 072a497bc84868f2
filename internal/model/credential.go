package model

import (
	"time"

	"github.com/notedapp/noted-sync/pkg/timex"
)

const TableNameCredential = "credential"

// Credential mapped from table <credential>
type Credential struct {
	Account           string     `gorm:"column:account;primaryKey" json:"account"`
	AccessToken       string     `gorm:"column:access_token;not null" json:"-"`
	RefreshToken      string     `gorm:"column:refresh_token;not null" json:"-"`
	AccessTokenExpiry time.Time  `gorm:"column:access_token_expiry" json:"accessTokenExpiry"`
	UserName          string     `gorm:"column:user_name" json:"userName"`
	UserEmail         string     `gorm:"column:user_email" json:"userEmail"`
	CreatedAt         timex.Time `gorm:"column:created_at;type:datetime;autoCreateTime:false" json:"createdAt"`
	UpdatedAt         timex.Time `gorm:"column:updated_at;type:datetime;autoUpdateTime:false" json:"updatedAt"`
}

// TableName Credential's table name
func (*Credential) TableName() string {
	return TableNameCredential
}
