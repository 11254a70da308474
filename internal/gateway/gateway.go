// Package gateway provides access to version-control repositories,
// abstracting away go-git and the GitHub API behind small interfaces.
package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
)

// ErrSourceUnavailable is returned by a Source whose version-control
// integration is not ready yet. Callers are expected to retry.
var ErrSourceUnavailable = errors.New("version control source unavailable")

// Source enumerates the repositories of a workspace.
type Source interface {
	ListRepositories(ctx context.Context) ([]Repository, error)
}

// Repository defines the queries needed from a single repository.
type Repository interface {
	// Root is the absolute path of the repository's working tree.
	Root() string
	PendingChanges(ctx context.Context) ([]domain.PendingChange, error)
	// CommitLog returns at most maxEntries commits, newest first.
	CommitLog(ctx context.Context, maxEntries int, shortStats bool) ([]domain.LogEntry, error)
	DiffAgainstHead(ctx context.Context, path string) (string, error)
	RelativePath(absolutePath string) string
}

// CommitLogFetcher fetches a commit log from somewhere other than the local clone.
type CommitLogFetcher interface {
	FetchCommitLog(ctx context.Context, owner, name string, maxEntries int) ([]domain.LogEntry, error)
}

// remoteLogRepository overrides the commit log of a local repository.
type remoteLogRepository struct {
	Repository
	fetcher     CommitLogFetcher
	owner, name string
	logger      *zap.Logger
}

// WithRemoteLog returns a Repository that behaves like repo except that its
// commit log is fetched from owner/name through fetcher. When the remote
// fetch fails the local log is used instead.
func WithRemoteLog(repo Repository, fetcher CommitLogFetcher, owner, name string, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &remoteLogRepository{Repository: repo, fetcher: fetcher, owner: owner, name: name, logger: logger}
}

func (r *remoteLogRepository) CommitLog(ctx context.Context, maxEntries int, shortStats bool) ([]domain.LogEntry, error) {
	entries, err := r.fetcher.FetchCommitLog(ctx, r.owner, r.name, maxEntries)
	if err == nil {
		return entries, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	r.logger.Warn("remote commit log unavailable, using local history",
		zap.String("repository", r.owner+"/"+r.name),
		zap.Error(err),
	)
	return r.Repository.CommitLog(ctx, maxEntries, shortStats)
}

// RemoteLocator is implemented by repositories that know their hosted
// counterpart.
type RemoteLocator interface {
	GitHubRemote() (owner, name string, ok bool)
}

type remoteLogSource struct {
	Source
	fetcher CommitLogFetcher
	logger  *zap.Logger
}

// WithRemoteLogs wraps source so that every repository whose origin can be
// located takes its commit log from fetcher. Other repositories are returned
// unchanged.
func WithRemoteLogs(source Source, fetcher CommitLogFetcher, logger *zap.Logger) Source {
	return &remoteLogSource{Source: source, fetcher: fetcher, logger: logger}
}

func (s *remoteLogSource) ListRepositories(ctx context.Context) ([]Repository, error) {
	repos, err := s.Source.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Repository, len(repos))
	for i, repo := range repos {
		out[i] = repo
		if loc, ok := repo.(RemoteLocator); ok {
			if owner, name, ok := loc.GitHubRemote(); ok {
				out[i] = WithRemoteLog(repo, s.fetcher, owner, name, s.logger)
			}
		}
	}
	return out, nil
}
