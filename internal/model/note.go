package model

import "github.com/notedapp/noted-sync/pkg/timex"

const TableNameNote = "note"

// Note mapped from table <note>
type Note struct {
	ID        string     `gorm:"column:id;primaryKey" json:"id"`
	RemoteID  string     `gorm:"column:remote_id;index:idx_remote_id" json:"remoteId"`
	Title     string     `gorm:"column:title" json:"title"`
	Body      string     `gorm:"column:body" json:"body"`
	Origin    string     `gorm:"column:origin" json:"origin"`
	Deleted   bool       `gorm:"column:deleted;default:false;index:idx_deleted" json:"deleted"`
	Ctime     int64      `gorm:"column:ctime;not null" json:"ctime"`
	Mtime     int64      `gorm:"column:mtime;not null" json:"mtime"`
	CreatedAt timex.Time `gorm:"column:created_at;type:datetime;autoCreateTime:false" json:"createdAt"`
	UpdatedAt timex.Time `gorm:"column:updated_at;type:datetime;autoUpdateTime:false" json:"updatedAt"`
}

// TableName Note's table name
func (*Note) TableName() string {
	return TableNameNote
}
