package model

import "github.com/notedapp/noted-sync/pkg/timex"

const TableNameSyncMapping = "sync_mapping"

// SyncMapping mapped from table <sync_mapping>
type SyncMapping struct {
	Account              string     `gorm:"column:account;primaryKey" json:"account"`
	LocalID              string     `gorm:"column:local_id;primaryKey" json:"localId"`
	RemoteID             string     `gorm:"column:remote_id;not null;index:idx_mapping_remote" json:"remoteId"`
	LastSyncedModifiedAt int64      `gorm:"column:last_synced_modified_at;not null" json:"lastSyncedModifiedAt"`
	UpdatedAt            timex.Time `gorm:"column:updated_at;type:datetime;autoUpdateTime:false" json:"updatedAt"`
}

// TableName SyncMapping's table name
func (*SyncMapping) TableName() string {
	return TableNameSyncMapping
}
