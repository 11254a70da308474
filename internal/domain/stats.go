// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"time"
)

// UnknownAuthor is the author key used when no author can be resolved.
const UnknownAuthor = "Unknown"

// OpenFileCommand is the command name carried by an OpenFileRequest.
const OpenFileCommand = "openFile"

// FileChange holds the line counts observed for a single repository-relative path.
type FileChange struct {
	FileName string `json:"fileName" yaml:"fileName"`
	Added    int    `json:"added" yaml:"added"`
	Removed  int    `json:"removed" yaml:"removed"`
}

// Churn returns the total number of touched lines.
func (f FileChange) Churn() int {
	return f.Added + f.Removed
}

// AuthorChange holds the line counts attributed to a single author.
type AuthorChange struct {
	AuthorName string `json:"authorName" yaml:"authorName"`
	Added      int    `json:"added" yaml:"added"`
	Removed    int    `json:"removed" yaml:"removed"`
}

// CommitSummary is the short stat of one commit taken from the history.
type CommitSummary struct {
	Message      string `json:"message" yaml:"message"`
	Added        int    `json:"added" yaml:"added"`
	Removed      int    `json:"removed" yaml:"removed"`
	FilesTouched int    `json:"filesTouched" yaml:"filesTouched"`
}

// AggregateSnapshot is an immutable copy of the aggregate state produced at
// the end of one refresh pass. Files and authors are in insertion order,
// commits in recency order (newest first).
type AggregateSnapshot struct {
	Files             []FileChange    `json:"files" yaml:"files"`
	Authors           []AuthorChange  `json:"authors" yaml:"authors"`
	Commits           []CommitSummary `json:"commits" yaml:"commits"`
	TotalFilesChanged int             `json:"totalFilesChanged" yaml:"totalFilesChanged"`
	TotalAdded        int             `json:"totalAdded" yaml:"totalAdded"`
	TotalRemoved      int             `json:"totalRemoved" yaml:"totalRemoved"`

	// Diagnostics about the pass that produced the snapshot.
	PassID              string    `json:"passId,omitempty" yaml:"passId,omitempty"`
	Reason              string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	RefreshedAt         time.Time `json:"refreshedAt" yaml:"refreshedAt"`
	SkippedDiffs        int       `json:"skippedDiffs" yaml:"skippedDiffs"`
	SkippedRepositories int       `json:"skippedRepositories" yaml:"skippedRepositories"`
}

// EmptySnapshot returns the snapshot served before the first successful refresh.
func EmptySnapshot() AggregateSnapshot {
	return AggregateSnapshot{
		Files:   []FileChange{},
		Authors: []AuthorChange{},
		Commits: []CommitSummary{},
	}
}

// StatusLine renders the one-line status summary of a snapshot.
func StatusLine(s AggregateSnapshot) string {
	return fmt.Sprintf("Files Changed: %d (+%d / -%d)", s.TotalFilesChanged, s.TotalAdded, s.TotalRemoved)
}

// PendingChange is a working-tree change reported by a repository.
type PendingChange struct {
	// Path is the absolute path of the changed file.
	Path   string
	Status string
}

// LogEntry is one commit as reported by a repository's log.
type LogEntry struct {
	Message      string
	AuthorName   string
	Insertions   int
	Deletions    int
	FilesTouched int
}

// Summary converts the log entry into the CommitSummary kept by the aggregate.
func (e LogEntry) Summary() CommitSummary {
	return CommitSummary{
		Message:      e.Message,
		Added:        e.Insertions,
		Removed:      e.Deletions,
		FilesTouched: e.FilesTouched,
	}
}

// OpenFileRequest asks the presentation layer to open a repository-relative path.
type OpenFileRequest struct {
	Command  string `json:"command" binding:"required"`
	FilePath string `json:"filePath" binding:"required"`
}
