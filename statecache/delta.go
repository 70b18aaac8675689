// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package statecache

import (
	"context"
	"errors"

	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/cache/account"
	"github.com/chainstate/statecache/cache/difficulty"
	"github.com/chainstate/statecache/cache/hashcache"
	"github.com/chainstate/statecache/cache/lock"
	"github.com/chainstate/statecache/cache/mosaic"
	"github.com/chainstate/statecache/cache/multisig"
	"github.com/chainstate/statecache/cache/namespace"
	"github.com/chainstate/statecache/cache/statistic"
	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/pipeline"
)

// Delta bundles the pending deltas of all caches of a state cache. It is
// committed through StateCache.Commit.
type Delta struct {
	owner *StateCache

	Accounts     *cache.Delta[common.Address, account.State]
	Mosaics      *cache.Delta[common.MosaicId, mosaic.Entry]
	Namespaces   *cache.Delta[common.NamespaceId, namespace.History]
	Multisigs    *cache.Delta[common.Address, multisig.Entry]
	Hashes       *cache.Delta[common.Hash, hashcache.Entry]
	Locks        *cache.Delta[common.Hash, lock.Info]
	Difficulties *cache.Delta[common.Height, difficulty.Info]
	Statistics   *cache.Delta[common.Height, statistic.BlockStatistic]

	acquired []common.Releaser
}

func createDelta[K deltaset.Key, V any](d *Delta, source *cache.Cache[K, V], err *error) *cache.Delta[K, V] {
	if *err != nil {
		return nil
	}
	res, e := source.CreateDelta()
	if e != nil {
		*err = e
		return nil
	}
	d.acquired = append(d.acquired, res)
	return res
}

// CreateDelta creates the deltas of all caches. It fails with
// common.ErrAlreadyInUse if any cache has a pending delta, in which case
// no delta is retained.
func (s *StateCache) CreateDelta() (*Delta, error) {
	res := &Delta{owner: s}
	var err error
	res.Accounts = createDelta(res, s.Accounts, &err)
	res.Mosaics = createDelta(res, s.Mosaics, &err)
	res.Namespaces = createDelta(res, s.Namespaces, &err)
	res.Multisigs = createDelta(res, s.Multisigs, &err)
	res.Hashes = createDelta(res, s.Hashes, &err)
	res.Locks = createDelta(res, s.Locks, &err)
	res.Difficulties = createDelta(res, s.Difficulties, &err)
	res.Statistics = createDelta(res, s.Statistics, &err)
	if err != nil {
		res.Release()
		return nil, err
	}
	return res, nil
}

// Release discards all uncommitted changes and frees the caches for new
// deltas. Releasing a committed delta has no effect on the committed state.
func (d *Delta) Release() {
	for _, cur := range d.acquired {
		cur.Release()
	}
	d.acquired = nil
}

// Stages creates the height pipeline stages operating on this delta.
// Height-indexed caches are touched on every height and pruned on the
// pipeline's schedule. The ordered histories keep the configured number
// of most recent heights. Caches that have never been pruned start with a
// boundary of zero, making the first prune cover all heights up to the
// prune height.
func (d *Delta) Stages() ([]pipeline.Stage, error) {
	errs := []error{
		startBoundary(d.Mosaics),
		startBoundary(d.Namespaces),
		startBoundary(d.Hashes),
		startBoundary(d.Locks),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	historySize := d.owner.config.HistorySize
	return []pipeline.Stage{
		pipeline.DeltaStage(d.Mosaics.Name(), d.Mosaics),
		pipeline.DeltaStage(d.Namespaces.Name(), d.Namespaces),
		pipeline.PruneStage(d.Hashes.Name(), d.Hashes),
		pipeline.DeltaStage(d.Locks.Name(), d.Locks),
		&historyStage{
			name: d.Difficulties.Name(),
			prune: func(height common.Height) ([]common.Height, error) {
				return difficulty.Prune(d.Difficulties, height, historySize)
			},
		},
		&historyStage{
			name: d.Statistics.Name(),
			prune: func(height common.Height) ([]common.Height, error) {
				return statistic.Prune(d.Statistics, height, historySize)
			},
		},
	}, nil
}

// Register registers the stages of this delta at the given pipeline.
func (d *Delta) Register(p *pipeline.Pipeline) error {
	stages, err := d.Stages()
	if err != nil {
		return err
	}
	for _, stage := range stages {
		if err := p.Register(stage); err != nil {
			return err
		}
	}
	return nil
}

// Advance runs the height pipeline for the given height on this delta,
// using the schedule of the state cache's configuration. Notifications
// are delivered to the given subscribers.
func (d *Delta) Advance(ctx context.Context, height common.Height, subscribers ...pipeline.Subscriber) error {
	p := pipeline.New(d.owner.config.Schedule(), d.owner.log, subscribers...)
	if err := d.Register(p); err != nil {
		return err
	}
	return p.Process(ctx, height)
}

func startBoundary[K deltaset.Key, V any](delta *cache.Delta[K, V]) error {
	if _, set := delta.PruningBoundary(); set {
		return nil
	}
	return delta.RestorePruningBoundary(0)
}

// historyStage prunes an ordered history to a fixed number of heights,
// relative to the most recently touched height.
type historyStage struct {
	name   string
	prune  func(common.Height) ([]common.Height, error)
	height common.Height
}

func (s *historyStage) Name() string {
	return s.name
}

func (s *historyStage) Touch(height common.Height) ([][]byte, error) {
	s.height = height
	return nil, nil
}

func (s *historyStage) Prune(common.Height) ([][]byte, error) {
	keys, err := s.prune(s.height)
	if len(keys) == 0 {
		return nil, err
	}
	res := make([][]byte, 0, len(keys))
	for _, key := range keys {
		res = append(res, key.ToBytes())
	}
	return res, err
}

// View bundles read-only views on all caches of a state cache. Views are
// taken cache by cache, so a commit running concurrently may be visible
// in some of them only.
type View struct {
	Accounts     *cache.View[common.Address, account.State]
	Mosaics      *cache.View[common.MosaicId, mosaic.Entry]
	Namespaces   *cache.View[common.NamespaceId, namespace.History]
	Multisigs    *cache.View[common.Address, multisig.Entry]
	Hashes       *cache.View[common.Hash, hashcache.Entry]
	Locks        *cache.View[common.Hash, lock.Info]
	Difficulties *cache.View[common.Height, difficulty.Info]
	Statistics   *cache.View[common.Height, statistic.BlockStatistic]
}

// CreateView creates views on all caches.
func (s *StateCache) CreateView() *View {
	return &View{
		Accounts:     s.Accounts.CreateView(),
		Mosaics:      s.Mosaics.CreateView(),
		Namespaces:   s.Namespaces.CreateView(),
		Multisigs:    s.Multisigs.CreateView(),
		Hashes:       s.Hashes.CreateView(),
		Locks:        s.Locks.CreateView(),
		Difficulties: s.Difficulties.CreateView(),
		Statistics:   s.Statistics.CreateView(),
	}
}

// Sizes returns the number of elements of each cache, by name.
func (v *View) Sizes() map[string]int {
	return map[string]int{
		v.Accounts.Name():     v.Accounts.Size(),
		v.Mosaics.Name():      v.Mosaics.Size(),
		v.Namespaces.Name():   v.Namespaces.Size(),
		v.Multisigs.Name():    v.Multisigs.Size(),
		v.Hashes.Name():       v.Hashes.Size(),
		v.Locks.Name():        v.Locks.Size(),
		v.Difficulties.Name(): v.Difficulties.Size(),
		v.Statistics.Name():   v.Statistics.Size(),
	}
}

// Release releases all views, unblocking commits.
func (v *View) Release() {
	v.Accounts.Release()
	v.Mosaics.Release()
	v.Namespaces.Release()
	v.Multisigs.Release()
	v.Hashes.Release()
	v.Locks.Release()
	v.Difficulties.Release()
	v.Statistics.Release()
}
