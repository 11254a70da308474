package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/naka-gawa/git-line-diffs/internal/domain"
)

// binarySniffLen is how many leading bytes are inspected for NUL bytes.
const binarySniffLen = 8000

var errBinaryAtHead = errors.New("binary at HEAD")

// LocalSource discovers git repositories under a set of workspace roots.
type LocalSource struct {
	roots  []string
	logger *zap.Logger
}

// NewLocalSource creates a LocalSource for the given workspace roots.
// Roots are made absolute; the first root is the primary one.
func NewLocalSource(roots []string, logger *zap.Logger) (*LocalSource, error) {
	if len(roots) == 0 {
		return nil, errors.New("at least one workspace root is required")
	}
	abs := make([]string, 0, len(roots))
	for _, root := range roots {
		p, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace root %q: %w", root, err)
		}
		abs = append(abs, filepath.Clean(p))
	}
	return &LocalSource{roots: abs, logger: logger}, nil
}

// Roots returns the absolute workspace roots.
func (s *LocalSource) Roots() []string {
	return append([]string(nil), s.roots...)
}

// ListRepositories opens every workspace root as a git repository. Roots that
// are not inside a repository are skipped; if none is, ErrSourceUnavailable
// is returned.
func (s *LocalSource) ListRepositories(ctx context.Context) ([]Repository, error) {
	seen := make(map[string]bool)
	var repos []Repository

	for _, root := range s.roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			s.logger.Debug("workspace root is not a git repository", zap.String("root", root), zap.Error(err))
			continue
		}
		wt, err := repo.Worktree()
		if err != nil {
			s.logger.Debug("repository has no worktree", zap.String("root", root), zap.Error(err))
			continue
		}

		wtRoot := filepath.Clean(wt.Filesystem.Root())
		if seen[wtRoot] {
			continue
		}
		seen[wtRoot] = true
		repos = append(repos, &LocalRepository{repo: repo, worktree: wt, root: wtRoot, source: s})
	}

	if len(repos) == 0 {
		return nil, fmt.Errorf("no git repository under %s: %w", strings.Join(s.roots, ", "), ErrSourceUnavailable)
	}
	return repos, nil
}

// relativePath follows the workspace convention: relative to the containing
// root, prefixed with the root's base name when several roots are open.
func (s *LocalSource) relativePath(abs string) (string, bool) {
	for _, root := range s.roots {
		rel, ok := within(root, abs)
		if !ok {
			continue
		}
		if len(s.roots) > 1 {
			rel = filepath.Join(filepath.Base(root), rel)
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

func within(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

// LocalRepository is a Repository backed by a go-git working tree.
// go-git object storage is not safe for concurrent use, so every read of it
// goes through mu; file reads and diff rendering run unlocked.
type LocalRepository struct {
	repo     *git.Repository
	worktree *git.Worktree
	root     string
	source   *LocalSource

	mu sync.Mutex
}

// Root returns the working tree root.
func (r *LocalRepository) Root() string {
	return r.root
}

// PendingChanges lists files whose working-tree state differs from the index
// or HEAD, untracked files included, sorted by path.
func (r *LocalRepository) PendingChanges(ctx context.Context) ([]domain.PendingChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	status, err := r.worktree.Status()
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read worktree status of %s: %w", r.root, err)
	}

	paths := make([]string, 0, len(status))
	for p, fs := range status {
		if fs.Worktree == git.Unmodified {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	changes := make([]domain.PendingChange, 0, len(paths))
	for _, p := range paths {
		changes = append(changes, domain.PendingChange{
			Path:   filepath.Join(r.root, filepath.FromSlash(p)),
			Status: statusName(status[p].Worktree),
		})
	}
	return changes, nil
}

func statusName(code git.StatusCode) string {
	switch code {
	case git.Untracked:
		return "untracked"
	case git.Modified:
		return "modified"
	case git.Added:
		return "added"
	case git.Deleted:
		return "deleted"
	case git.Renamed:
		return "renamed"
	case git.Copied:
		return "copied"
	case git.UpdatedButUnmerged:
		return "unmerged"
	default:
		return string(rune(code))
	}
}

// CommitLog walks history from HEAD in committer-time order. A repository
// without commits yields an empty log.
func (r *LocalRepository) CommitLog(ctx context.Context, maxEntries int, shortStats bool) ([]domain.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []domain.LogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD of %s: %w", r.root, err)
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("failed to read log of %s: %w", r.root, err)
	}
	defer iter.Close()

	entries := make([]domain.LogEntry, 0, maxEntries)
	for len(entries) < maxEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate log of %s: %w", r.root, err)
		}

		entry := domain.LogEntry{
			Message:    strings.TrimSpace(c.Message),
			AuthorName: c.Author.Name,
		}
		if shortStats {
			stats, err := c.Stats()
			if err != nil {
				return nil, fmt.Errorf("failed to compute stats for %s: %w", c.Hash, err)
			}
			for _, fs := range stats {
				entry.Insertions += fs.Addition
				entry.Deletions += fs.Deletion
			}
			entry.FilesTouched = len(stats)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DiffAgainstHead renders a unified diff of the file at path between HEAD and
// the working tree. Binary content yields an empty diff.
func (r *LocalRepository) DiffAgainstHead(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, ok := within(r.root, path)
	if !ok {
		return "", fmt.Errorf("%s is outside repository %s", path, r.root)
	}
	name := filepath.ToSlash(rel)

	oldText, oldExists, err := r.headContents(name)
	if errors.Is(err, errBinaryAtHead) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	newBytes, err := os.ReadFile(path)
	newExists := true
	if errors.Is(err, os.ErrNotExist) {
		newBytes, newExists = nil, false
	} else if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if isBinary(newBytes) {
		return "", nil
	}

	return unifiedDiff(name, oldText, string(newBytes), oldExists, newExists), nil
}

func (r *LocalRepository) headContents(name string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve HEAD of %s: %w", r.root, err)
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return "", false, fmt.Errorf("failed to load HEAD commit of %s: %w", r.root, err)
	}
	file, err := commit.File(name)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up %s at HEAD: %w", name, err)
	}
	bin, err := file.IsBinary()
	if err != nil {
		return "", false, fmt.Errorf("failed to inspect %s at HEAD: %w", name, err)
	}
	if bin {
		return "", true, errBinaryAtHead
	}
	contents, err := file.Contents()
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s at HEAD: %w", name, err)
	}
	return contents, true, nil
}

// RelativePath resolves an absolute path against the workspace roots, falling
// back to the repository root.
func (r *LocalRepository) RelativePath(absolutePath string) string {
	if rel, ok := r.source.relativePath(absolutePath); ok {
		return rel
	}
	if rel, ok := within(r.root, absolutePath); ok {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(absolutePath)
}

// GitHubRemote reports the owner and name of the repository's origin when it
// is hosted on github.com.
func (r *LocalRepository) GitHubRemote() (owner, name string, ok bool) {
	remote, err := r.repo.Remote("origin")
	if err != nil {
		return "", "", false
	}
	for _, url := range remote.Config().URLs {
		if owner, name, ok := ParseGitHubRemote(url); ok {
			return owner, name, true
		}
	}
	return "", "", false
}

func isBinary(b []byte) bool {
	if len(b) > binarySniffLen {
		b = b[:binarySniffLen]
	}
	return bytes.IndexByte(b, 0) >= 0
}

func unifiedDiff(name, oldText, newText string, oldExists, newExists bool) string {
	if oldText == newText && oldExists == newExists {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	oldName, newName := "a/"+name, "b/"+name
	if !oldExists {
		oldName = "/dev/null"
	}
	if !newExists {
		newName = "/dev/null"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", name, name)
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldName, newName)
	fmt.Fprintf(&sb, "@@ -1,%d +1,%d @@\n", len(splitLines(oldText)), len(splitLines(newText)))
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range splitLines(d.Text) {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	return lines
}
