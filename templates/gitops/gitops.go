/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package gitops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Clone clones the repository at url into dir and checks out ref, which may
// be a branch, tag, or commit SHA. An empty ref leaves the clone at the
// remote HEAD. It returns the SHA of the checked-out commit.
func Clone(ctx context.Context, url, ref, dir string) (string, error) {
	clog.FromContext(ctx).Infof("Cloning %s into %s", url, dir)

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL: url,
	})
	if err != nil {
		return "", fmt.Errorf("cloning repository: %w", err)
	}

	if ref != "" {
		hash, err := repo.ResolveRevision(plumbing.Revision(ref))
		if err != nil {
			return "", fmt.Errorf("resolving ref %q: %w", ref, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("getting worktree: %w", err)
		}
		if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
			return "", fmt.Errorf("checking out ref %q: %w", ref, err)
		}
		return hash.String(), nil
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// IsRepo reports whether dir is inside a git repository.
func IsRepo(dir string) bool {
	_, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

// HeadSHA returns the SHA of HEAD in dir, or the empty string outside a
// repository.
func HeadSHA(dir string) (string, error) {
	repo, err := openRepo(dir)
	if err != nil || repo == nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// EnsureBranch checks out the named branch in dir, creating it at HEAD if
// it does not exist. An existing branch is switched to, never rewritten.
// Outside a repository this is a no-op that reports the requested name.
// It returns the branch name in effect and whether it newly created it.
func EnsureBranch(ctx context.Context, dir, name string) (string, bool, error) {
	if name == "" {
		return "", false, errors.New("branch name cannot be empty")
	}

	repo, err := openRepo(dir)
	if err != nil {
		return "", false, err
	}
	if repo == nil {
		clog.FromContext(ctx).Debugf("Not a git repository, skipping branch %s", name)
		return name, false, nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", false, fmt.Errorf("getting worktree: %w", err)
	}

	refName := plumbing.NewBranchReferenceName(name)
	_, err = repo.Reference(refName, true)
	switch {
	case err == nil:
		clog.FromContext(ctx).Infof("Switching to existing branch %s", name)
		if err := worktree.Checkout(&git.CheckoutOptions{Branch: refName}); err != nil {
			return "", false, fmt.Errorf("switching to branch %s: %w", name, err)
		}
		return name, false, nil
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		clog.FromContext(ctx).Infof("Creating branch %s", name)
		if err := worktree.Checkout(&git.CheckoutOptions{Branch: refName, Create: true}); err != nil {
			return "", false, fmt.Errorf("creating branch %s: %w", name, err)
		}
		return name, true, nil
	default:
		return "", false, fmt.Errorf("resolving branch %s: %w", name, err)
	}
}

// AddPaths stages the given worktree-relative paths. Paths that exist
// neither on disk nor in the index are skipped, and the whole call is a
// no-op outside a repository. A blanket "add all" is deliberately not
// offered; checkpoint commits must stay scoped to a unit's known files.
func AddPaths(ctx context.Context, dir string, paths []string) error {
	repo, err := openRepo(dir)
	if err != nil {
		return err
	}
	if repo == nil {
		clog.FromContext(ctx).Debugf("Not a git repository, skipping add of %d paths", len(paths))
		return nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	for _, p := range paths {
		if _, err := worktree.Add(p); err != nil {
			clog.FromContext(ctx).Debugf("Skipping unstageable path %s: %v", p, err)
		}
	}
	return nil
}

// Commit commits whatever is staged in dir. When nothing is staged, or dir
// is not a repository, Commit is a soft no-op returning an empty SHA. The
// identity is used as the author name; when it lacks a domain it is
// suffixed with @chainguard.dev.
func Commit(ctx context.Context, dir, message, identity string) (string, error) {
	if message == "" {
		return "", errors.New("commit message cannot be empty")
	}

	repo, err := openRepo(dir)
	if err != nil {
		return "", err
	}
	if repo == nil {
		clog.FromContext(ctx).Debugf("Not a git repository, skipping commit")
		return "", nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	staged, err := hasStagedChanges(worktree)
	if err != nil {
		return "", err
	}
	if !staged {
		clog.FromContext(ctx).Debugf("Nothing staged, skipping commit")
		return "", nil
	}

	email := identity
	if !strings.Contains(email, "@") {
		email = fmt.Sprintf("%s@chainguard.dev", email)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  identity,
			Email: email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}

	clog.FromContext(ctx).Infof("Committed %s: %s", hash.String()[:7], message)
	return hash.String(), nil
}

// openRepo opens the repository containing dir, returning (nil, nil) when
// dir is not inside one.
func openRepo(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening repo: %w", err)
	}
	return repo, nil
}

func hasStagedChanges(worktree *git.Worktree) (bool, error) {
	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("getting worktree status: %w", err)
	}
	for _, fs := range status {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			return true, nil
		}
	}
	return false, nil
}
