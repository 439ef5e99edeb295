// Package models holds the endpoint row type and the mutation results the
// record store returns.
package models

import "time"

type Endpoint struct {
	ID            int64     `db:"id"`
	EnvironmentID int64     `db:"environment_id"`
	Version       string    `db:"version"`
	URL           string    `db:"url"`
	IsActive      bool      `db:"is_active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// EndpointState is the prior state captured by a mutation for the change
// event. Existed is false when the endpoint did not exist before.
type EndpointState struct {
	URL      string
	IsActive bool
	Existed  bool
}

// PreviousStateLabel renders the state the way events carry it: "active",
// "inactive" or empty for a previously missing endpoint.
func (s EndpointState) PreviousStateLabel() string {
	if !s.Existed {
		return ""
	}
	if s.IsActive {
		return "active"
	}
	return "inactive"
}

// MutationResult describes a committed (or idempotently skipped) mutation.
// Changed is false when the store was already in the requested state; no
// event is published for those.
type MutationResult struct {
	URL      string
	Previous EndpointState
	Changed  bool
}
