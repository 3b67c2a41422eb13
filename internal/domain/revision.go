package domain

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Revision is one immutable entry of a project's commit log.
type Revision struct {
	ProjectID string    `json:"projectId"`
	Version   int64     `json:"version"`
	SHA       string    `json:"sha"`
	ParentSHA string    `json:"parentSha,omitempty"`
	Author    string    `json:"author"`
	Time      time.Time `json:"time"`
}

// ShaLength is the hex length of a commit identifier.
const ShaLength = 64

type VersionRefKind int

const (
	VersionLatest VersionRefKind = iota
	VersionNumber
	VersionSHA
)

// VersionRef selects a revision: the latest one, a version number or a commit sha.
type VersionRef struct {
	Kind   VersionRefKind
	Number int64
	SHA    string
}

var LatestVersion = VersionRef{Kind: VersionLatest}

func AtVersion(n int64) VersionRef {
	return VersionRef{Kind: VersionNumber, Number: n}
}

func AtSHA(sha string) VersionRef {
	return VersionRef{Kind: VersionSHA, SHA: strings.ToLower(sha)}
}

func (v VersionRef) IsLatest() bool {
	return v.Kind == VersionLatest
}

func (v VersionRef) String() string {
	switch v.Kind {
	case VersionNumber:
		return strconv.FormatInt(v.Number, 10)
	case VersionSHA:
		return v.SHA
	default:
		return "latest"
	}
}

// ParseVersionRef accepts "", "latest", a non-negative version number or a
// commit sha. Anything else is reported as a missing version.
func ParseVersionRef(s string) (VersionRef, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "latest" {
		return LatestVersion, nil
	}

	if len(s) == ShaLength {
		if _, err := hex.DecodeString(s); err == nil {
			return AtSHA(s), nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return VersionRef{}, NotFoundError{Resource: "version " + s}
	}
	return AtVersion(n), nil
}
