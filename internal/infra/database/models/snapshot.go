package models

import (
	"time"
)

// Snapshot is one registry row; (owner, project_id, project_version) is unique.
type Snapshot struct {
	ID             string            `json:"uuid" gorm:"primaryKey;type:text"`
	Owner          string            `json:"owner" gorm:"type:text;not null;uniqueIndex:uniq_snapshot_owner_project_version,priority:1"`
	ProjectID      string            `json:"projectId" gorm:"type:text;not null;index;uniqueIndex:uniq_snapshot_owner_project_version,priority:2"`
	ProjectVersion int64             `json:"projectVersion" gorm:"not null;uniqueIndex:uniq_snapshot_owner_project_version,priority:3"`
	ProjectSHA     string            `json:"projectSha" gorm:"type:text;not null"`
	Message        string            `json:"message" gorm:"type:text"`
	Type           string            `json:"type" gorm:"type:text;not null;index"`
	Tags           string            `json:"tags" gorm:"type:text;not null"`
	Keywords       string            `json:"keywords" gorm:"type:text;not null"`
	Status         int               `json:"status" gorm:"not null;default:1;index"`
	CDate          time.Time         `json:"cdate" gorm:"not null"`
	MDate          time.Time         `json:"mdate" gorm:"not null"`
	TagRows        []SnapshotTag     `json:"-" gorm:"foreignKey:SnapshotID;references:ID;constraint:OnDelete:CASCADE;"`
	KeywordRows    []SnapshotKeyword `json:"-" gorm:"foreignKey:SnapshotID;references:ID;constraint:OnDelete:CASCADE;"`
}

// SnapshotTag indexes one tag of a snapshot; TagValue is the canonical JSON of the value.
type SnapshotTag struct {
	SnapshotID string `json:"snapshotId" gorm:"primaryKey;type:text"`
	TagKey     string `json:"tagKey" gorm:"primaryKey;type:text;index:idx_snapshot_tag_pair,priority:1"`
	TagValue   string `json:"tagValue" gorm:"type:text;not null;index:idx_snapshot_tag_pair,priority:2"`
}

// SnapshotKeyword indexes one normalized keyword of a snapshot.
type SnapshotKeyword struct {
	SnapshotID string `json:"snapshotId" gorm:"primaryKey;type:text"`
	Keyword    string `json:"keyword" gorm:"primaryKey;type:text;index"`
	Position   int    `json:"position" gorm:"not null"`
}
