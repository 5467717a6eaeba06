// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// Head describes the checked-out commit of a git working copy.
type Head struct {
	Hash string
	// Ref is the short branch name, or "HEAD" when detached.
	Ref string
}

// Short returns the abbreviated commit hash.
func (h Head) Short() string {
	if len(h.Hash) > 12 {
		return h.Hash[:12]
	}
	return h.Hash
}

// GitHead reads the HEAD of the git repository in dir.
func GitHead(dir string) (Head, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return Head{}, fmt.Errorf("failed to open repository %s: %w", dir, err)
	}
	ref, err := repo.Head()
	if err != nil {
		return Head{}, fmt.Errorf("failed to read HEAD of %s: %w", dir, err)
	}
	name := "HEAD"
	if ref.Name().IsBranch() {
		name = ref.Name().Short()
	}
	return Head{Hash: ref.Hash().String(), Ref: name}, nil
}
