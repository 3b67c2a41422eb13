package models

import (
	"time"
)

// Project is the head pointer of one project's commit log.
type Project struct {
	ID            string    `json:"id" gorm:"primaryKey;type:text"`
	Owner         string    `json:"owner" gorm:"type:text;not null;index"`
	LatestVersion int64     `json:"latestVersion" gorm:"not null"`
	HeadSHA       string    `json:"headSha" gorm:"type:text;not null"`
	CDate         time.Time `json:"cdate" gorm:"->;<-:create;not null;autoCreateTime"`
	MDate         time.Time `json:"mdate" gorm:"not null;autoUpdateTime"`
}

// CommitLog holds one immutable revision of a project.
type CommitLog struct {
	SHA       string    `json:"sha" gorm:"primaryKey;type:text"`
	ProjectID string    `json:"projectId" gorm:"type:text;not null;uniqueIndex:uniq_commit_project_version,priority:1"`
	Project   Project   `json:"-" gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE;"`
	Version   int64     `json:"version" gorm:"not null;uniqueIndex:uniq_commit_project_version,priority:2"`
	ParentSHA *string   `json:"parentSha" gorm:"type:text"`
	Author    string    `json:"author" gorm:"type:text;not null"`
	Document  string    `json:"document" gorm:"type:text;not null"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;not null"`
}
