package domain

import (
	"fmt"
	"time"
)

// Rules are the structural flags shared by projects and blocks.
type Rules struct {
	Frozen bool   `json:"frozen"`
	List   bool   `json:"list,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Project is the root manifest of a construct hierarchy.
type Project struct {
	ID         string         `json:"id" validate:"required"`
	Version    int64          `json:"version"`
	LastSaved  *time.Time     `json:"lastSaved,omitempty"`
	Owner      string         `json:"owner,omitempty"`
	Metadata   map[string]any `json:"metadata"`
	Rules      Rules          `json:"rules"`
	Components []string       `json:"components"`
}

// Block is one constituent part of a project.
type Block struct {
	ID         string          `json:"id" validate:"required"`
	ProjectID  string          `json:"projectId"`
	Metadata   map[string]any  `json:"metadata"`
	Rules      Rules           `json:"rules"`
	Components []string        `json:"components"`
	Options    map[string]bool `json:"options"`
	Sequence   map[string]any  `json:"sequence,omitempty"`
}

// Rollup is a full project document tree exchanged as one unit.
type Rollup struct {
	Schema  int               `json:"schema"`
	Project Project           `json:"project" validate:"required"`
	Blocks  map[string]*Block `json:"blocks" validate:"dive"`
}

// CurrentSchema is stamped on every rollup written by this service.
const CurrentSchema = 2

// CheckReferences verifies that every block id referenced by the project or
// by another block is present in the rollup, and that blocks are keyed by id.
func (r *Rollup) CheckReferences() error {
	for _, id := range r.Project.Components {
		if _, ok := r.Blocks[id]; !ok {
			return InvalidInputError{Reason: fmt.Sprintf("project component %s missing from rollup", id)}
		}
	}
	for key, block := range r.Blocks {
		if block == nil {
			return InvalidInputError{Reason: fmt.Sprintf("block %s is empty", key)}
		}
		if block.ID != key {
			return InvalidInputError{Reason: fmt.Sprintf("block keyed %s has id %s", key, block.ID)}
		}
		for _, id := range block.Components {
			if _, ok := r.Blocks[id]; !ok {
				return InvalidInputError{Reason: fmt.Sprintf("component %s of block %s missing from rollup", id, key)}
			}
		}
		for id := range block.Options {
			if _, ok := r.Blocks[id]; !ok {
				return InvalidInputError{Reason: fmt.Sprintf("option %s of block %s missing from rollup", id, key)}
			}
		}
	}
	return nil
}

// AssignProject points every block at the rollup's project.
func (r *Rollup) AssignProject() {
	for _, block := range r.Blocks {
		block.ProjectID = r.Project.ID
	}
}

// Freeze marks the project and every block as an immutable published artifact.
func (r *Rollup) Freeze() {
	r.Project.Rules.Frozen = true
	for _, block := range r.Blocks {
		block.Rules.Frozen = true
	}
}

// PickBlocks returns the requested blocks, failing if any is absent.
func (r *Rollup) PickBlocks(ids ...string) (map[string]*Block, error) {
	if len(ids) == 0 {
		return r.Blocks, nil
	}
	picked := make(map[string]*Block, len(ids))
	for _, id := range ids {
		block, ok := r.Blocks[id]
		if !ok {
			return nil, NotFoundError{Resource: "block " + id}
		}
		picked[id] = block
	}
	return picked, nil
}
