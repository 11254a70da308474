package gateway

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
)

// maxHistoryPage is the largest page GitHub accepts for connection queries.
const maxHistoryPage = 100

var githubRemotePattern = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`)

// ParseGitHubRemote extracts owner and repository name from a github.com
// remote URL in https, ssh or scp-like form.
func ParseGitHubRemote(url string) (owner, name string, ok bool) {
	m := githubRemotePattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// GitHubLog fetches commit history from the GitHub API.
type GitHubLog struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *zap.Logger
}

// commitHistoryQuery reads the default branch history with short stats.
type commitHistoryQuery struct {
	Repository struct {
		DefaultBranchRef struct {
			Target struct {
				Commit struct {
					History struct {
						Nodes []struct {
							Oid                     githubv4.GitObjectID
							Message                 string
							Additions               githubv4.Int
							Deletions               githubv4.Int
							ChangedFilesIfAvailable *githubv4.Int
							Author                  struct {
								Name string
							}
						}
					} `graphql:"history(first: $limit)"`
				} `graphql:"... on Commit"`
			}
		}
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGitHubLog is a constructor that creates a new instance of GitHubLog.
func NewGitHubLog(token string, logger *zap.Logger) (*GitHubLog, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}
	return &GitHubLog{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}, nil
}

// FetchCommitLog returns the newest maxEntries commits of the default branch
// of owner/name. File counts GitHub withholds from the GraphQL response are
// filled in from the REST commit endpoint.
func (g *GitHubLog) FetchCommitLog(ctx context.Context, owner, name string, maxEntries int) ([]domain.LogEntry, error) {
	if maxEntries <= 0 {
		return []domain.LogEntry{}, nil
	}
	limit := min(maxEntries, maxHistoryPage)

	g.logger.Debug("fetching commit history from GitHub", zap.String("repository", owner+"/"+name), zap.Int("limit", limit))
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
		"limit": githubv4.Int(limit),
	}
	var q commitHistoryQuery
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to execute GraphQL query for commit history: %w", err)
	}

	nodes := q.Repository.DefaultBranchRef.Target.Commit.History.Nodes
	entries := make([]domain.LogEntry, 0, len(nodes))
	for _, node := range nodes {
		entry := domain.LogEntry{
			Message:    strings.TrimSpace(node.Message),
			AuthorName: node.Author.Name,
			Insertions: int(node.Additions),
			Deletions:  int(node.Deletions),
		}
		if node.ChangedFilesIfAvailable != nil {
			entry.FilesTouched = int(*node.ChangedFilesIfAvailable)
		} else {
			files, err := g.fetchChangedFiles(ctx, owner, name, string(node.Oid))
			if err != nil {
				return nil, err
			}
			entry.FilesTouched = files
		}
		entries = append(entries, entry)
	}
	g.logger.Debug("completed fetching commit history", zap.Int("commits", len(entries)))
	return entries, nil
}

func (g *GitHubLog) fetchChangedFiles(ctx context.Context, owner, name, sha string) (int, error) {
	commit, _, err := g.restClient.Repositories.GetCommit(ctx, owner, name, sha, &github.ListOptions{PerPage: maxHistoryPage})
	if err != nil {
		return 0, fmt.Errorf("failed to get commit %s with REST API: %w", sha, err)
	}
	return len(commit.Files), nil
}
