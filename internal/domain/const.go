package domain

const (
	RequesterIdCtxKey = "cs-requesterId"
)

const (
	// RequesterIdHeader is set by the authenticating proxy in front of this service.
	RequesterIdHeader = "x-requester-id"

	// LatestSnapshotHeader carries the newest snapshot id on HEAD /snapshots/:projectId.
	LatestSnapshotHeader = "Latest-Snapshot"
)

const (
	SnapshotTypePlain   = "plain"
	SnapshotTypeTest    = "test"
	SnapshotTypeFork    = "fork"
	SnapshotTypePublish = "publish"
)

// CommonsTag marks a publish snapshot as publicly visible when set to true.
const CommonsTag = "COMMONS_TAG"

const (
	CommonsChannel = "commons"

	CommonsEventPublished   = "published"
	CommonsEventUnpublished = "unpublished"
)

// CommonsEvent is broadcast whenever a project version enters or leaves the commons.
type CommonsEvent struct {
	Type       string `json:"type"`
	ProjectID  string `json:"projectId"`
	Version    int64  `json:"version"`
	SnapshotID string `json:"snapshotId"`
	Owner      string `json:"owner"`
}
