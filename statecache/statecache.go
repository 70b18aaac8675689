// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package statecache bundles the caches describing the state of a chain
// into a single unit that is viewed, modified and committed together.
package statecache

import (
	"errors"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
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
	"github.com/chainstate/statecache/common/logger"
	"github.com/chainstate/statecache/config"
	"github.com/chainstate/statecache/stateroot"
	"go.uber.org/zap"
)

// Options are optional collaborators of a state cache.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Set
}

// StateCache owns one cache per kind of state. Commits of all caches
// are folded into a common state root.
type StateCache struct {
	config config.Config
	log    *zap.Logger
	root   *stateroot.Calculator

	Accounts     *cache.Cache[common.Address, account.State]
	Mosaics      *cache.Cache[common.MosaicId, mosaic.Entry]
	Namespaces   *cache.Cache[common.NamespaceId, namespace.History]
	Multisigs    *cache.Cache[common.Address, multisig.Entry]
	Hashes       *cache.Cache[common.Hash, hashcache.Entry]
	Locks        *cache.Cache[common.Hash, lock.Info]
	Difficulties *cache.Cache[common.Height, difficulty.Info]
	Statistics   *cache.Cache[common.Height, statistic.BlockStatistic]

	// all caches in commit order
	caches []subcache
}

type subcache interface {
	Name() string
	Generation() uint64
	Commit() error
	GetMemoryFootprint() *common.MemoryFootprint
}

func options[K deltaset.Key, V any](s *StateCache, o Options) cache.Options[K, V] {
	return cache.Options[K, V]{
		Logger:   s.log,
		Metrics:  o.Metrics,
		OnCommit: stateroot.Observer[K, V](s.root),
	}
}

// New creates an empty state cache.
func New(cfg config.Config, o Options) (*StateCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	root, err := stateroot.NewCalculator()
	if err != nil {
		return nil, err
	}
	res := &StateCache{
		config: cfg,
		log:    logger.OrNop(o.Logger),
		root:   root,
	}
	errs := []error{}
	add := func(c subcache, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		res.caches = append(res.caches, c)
	}
	res.Accounts, err = account.New(options[common.Address, account.State](res, o))
	add(res.Accounts, err)
	res.Mosaics, err = mosaic.New(options[common.MosaicId, mosaic.Entry](res, o))
	add(res.Mosaics, err)
	res.Namespaces, err = namespace.New(options[common.NamespaceId, namespace.History](res, o))
	add(res.Namespaces, err)
	res.Multisigs, err = multisig.New(options[common.Address, multisig.Entry](res, o))
	add(res.Multisigs, err)
	res.Hashes, err = hashcache.New(options[common.Hash, hashcache.Entry](res, o))
	add(res.Hashes, err)
	res.Locks, err = lock.New(options[common.Hash, lock.Info](res, o))
	add(res.Locks, err)
	res.Difficulties, err = difficulty.New(options[common.Height, difficulty.Info](res, o))
	add(res.Difficulties, err)
	res.Statistics, err = statistic.New(options[common.Height, statistic.BlockStatistic](res, o))
	add(res.Statistics, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return res, nil
}

// Config returns the configuration of this state cache.
func (s *StateCache) Config() config.Config {
	return s.config
}

// Names lists the names of all caches in commit order.
func (s *StateCache) Names() []string {
	res := make([]string, 0, len(s.caches))
	for _, c := range s.caches {
		res = append(res, c.Name())
	}
	return res
}

// Commit commits the pending deltas of all caches in a fixed order. The
// aggregate delta stays usable, based on the new state, until released.
// All caches are attempted, even if some of them fail.
func (s *StateCache) Commit() error {
	errs := []error{}
	for _, c := range s.caches {
		if err := c.Commit(); err != nil {
			errs = append(errs, fmt.Errorf("failed to commit %s: %w", c.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	root, err := s.root.Root()
	if err != nil {
		return err
	}
	s.log.Debug("state committed", zap.Stringer("root", root), zap.Uint64("updates", s.root.Updates()))
	return nil
}

// StateRoot returns the hash summarizing all commits so far.
func (s *StateCache) StateRoot() (common.Hash, error) {
	return s.root.Root()
}

// Generations returns the commit count of each cache, by name.
func (s *StateCache) Generations() map[string]uint64 {
	res := make(map[string]uint64, len(s.caches))
	for _, c := range s.caches {
		res[c.Name()] = c.Generation()
	}
	return res
}

func (s *StateCache) GetMemoryFootprint() *common.MemoryFootprint {
	mf := common.NewMemoryFootprint(0)
	for _, c := range s.caches {
		mf.AddChild(c.Name(), c.GetMemoryFootprint())
	}
	return mf
}
