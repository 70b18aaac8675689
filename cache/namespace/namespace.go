// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package namespace provides the cache of namespace histories. Every root
// namespace owns an ordered list of root snapshots, one per registration or
// renewal. Child namespaces are stored within the history of their root.
package namespace

import (
	"fmt"

	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Root is a single registration period of a root namespace.
type Root struct {
	Owner common.Address
	Start common.Height
	End   common.Height
}

// IsActive returns true if the root is active at the given height.
func (r Root) IsActive(height common.Height) bool {
	return r.Start <= height && height < r.End
}

// Child is a namespace below a root. It refers to its root by id; the root
// is resolved through the cache.
type Child struct {
	Id     common.NamespaceId
	Parent common.NamespaceId
	Root   common.NamespaceId
}

// History is the sequence of registrations of a root namespace, oldest
// first, together with its children.
type History struct {
	Id       common.NamespaceId
	Roots    []Root
	Children map[common.NamespaceId]Child
}

// NewHistory creates the history of a newly registered root namespace.
func NewHistory(id common.NamespaceId, root Root) History {
	return History{
		Id:       id,
		Roots:    []Root{root},
		Children: map[common.NamespaceId]Child{},
	}
}

// Active returns the most recent registration.
func (h History) Active() Root {
	return h.Roots[len(h.Roots)-1]
}

// ChildIds lists the ids of all children in ascending order.
func (h History) ChildIds() []common.NamespaceId {
	res := maps.Keys(h.Children)
	slices.Sort(res)
	return res
}

// Clone creates a deep copy of the history.
func (h History) Clone() History {
	return History{
		Id:       h.Id,
		Roots:    slices.Clone(h.Roots),
		Children: maps.Clone(h.Children),
	}
}

// Equal compares the content of two histories.
func (h History) Equal(other History) bool {
	return h.Id == other.Id &&
		slices.Equal(h.Roots, other.Roots) &&
		maps.Equal(h.Children, other.Children)
}

func expiryHeights(h History) []common.Height {
	res := make([]common.Height, 0, len(h.Roots))
	for _, root := range h.Roots {
		res = append(res, root.End)
	}
	return res
}

// renew appends the single root of incoming to the existing history. A
// renewal by a different owner drops all children.
func renew(existing, incoming History) (History, error) {
	if len(incoming.Roots) != 1 {
		return History{}, fmt.Errorf("%w: renewal of %v needs exactly one root", common.ErrInvalidArgument, existing.Id)
	}
	root := incoming.Roots[0]
	if root.Start < existing.Active().Start || root.End <= existing.Active().End {
		return History{}, fmt.Errorf("%w: renewal of %v does not extend its lifetime", common.ErrInvalidArgument, existing.Id)
	}
	res := existing.Clone()
	if root.Owner != existing.Active().Owner {
		res.Children = map[common.NamespaceId]Child{}
	}
	res.Roots = append(res.Roots, root)
	return res, nil
}

// pruneVersion drops the oldest root if it expires at the given height.
func pruneVersion(h History, height common.Height) (History, bool) {
	if h.Roots[0].End != height {
		return h, true
	}
	if len(h.Roots) == 1 {
		return History{}, false
	}
	res := h.Clone()
	res.Roots = res.Roots[1:]
	return res, true
}

// Traits describes the namespace cache. Inserting a known root renews it.
func Traits() cache.Traits[common.NamespaceId, History] {
	return cache.Traits[common.NamespaceId, History]{
		Name:          "namespace",
		KeyOf:         func(h History) common.NamespaceId { return h.Id },
		Clone:         History.Clone,
		Equal:         History.Equal,
		ExpiryHeights: expiryHeights,
		Renew:         renew,
		PruneVersion:  pruneVersion,
	}
}

// New creates an empty namespace cache.
func New(options cache.Options[common.NamespaceId, History]) (*cache.Cache[common.NamespaceId, History], error) {
	return cache.New(Traits(), options)
}

// AddChild registers a child namespace within the history of its root.
func AddChild(delta *cache.Delta[common.NamespaceId, History], child Child) error {
	history, err := delta.FindMutable(child.Root).Get()
	if err != nil {
		return err
	}
	if _, found := history.Children[child.Id]; found {
		return fmt.Errorf("%w: child %v already registered", common.ErrInvalidArgument, child.Id)
	}
	if child.Parent != child.Root {
		if _, found := history.Children[child.Parent]; !found {
			return fmt.Errorf("%w: unknown parent %v of %v", common.ErrInvalidArgument, child.Parent, child.Id)
		}
	}
	history.Children[child.Id] = child
	return nil
}

// RemoveChild removes a child namespace without children of its own.
func RemoveChild(delta *cache.Delta[common.NamespaceId, History], root, id common.NamespaceId) error {
	history, err := delta.FindMutable(root).Get()
	if err != nil {
		return err
	}
	if _, found := history.Children[id]; !found {
		return fmt.Errorf("%w: unknown child %v of %v", common.ErrInvalidArgument, id, root)
	}
	for _, child := range history.Children {
		if child.Parent == id {
			return fmt.Errorf("%w: child %v has children", common.ErrInvalidArgument, id)
		}
	}
	delete(history.Children, id)
	return nil
}

// Reader is the read access to the namespace cache shared by views and
// deltas.
type Reader interface {
	Find(common.NamespaceId) cache.FindResult[History]
}

// ResolveRoot returns the active root owning the given child.
func ResolveRoot(reader Reader, child Child) (Root, error) {
	history, err := reader.Find(child.Root).Get()
	if err != nil {
		return Root{}, err
	}
	if _, found := history.Children[child.Id]; !found {
		return Root{}, fmt.Errorf("%w: %v is not a child of %v", common.ErrInvalidArgument, child.Id, child.Root)
	}
	return history.Active(), nil
}
