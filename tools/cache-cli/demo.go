// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"errors"
	"fmt"

	"github.com/chainstate/statecache/cache/account"
	"github.com/chainstate/statecache/cache/difficulty"
	"github.com/chainstate/statecache/cache/hashcache"
	"github.com/chainstate/statecache/cache/lock"
	"github.com/chainstate/statecache/cache/mosaic"
	"github.com/chainstate/statecache/cache/multisig"
	"github.com/chainstate/statecache/cache/namespace"
	"github.com/chainstate/statecache/cache/statistic"
	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/common/amount"
	"github.com/chainstate/statecache/common/interrupt"
	"github.com/chainstate/statecache/pipeline"
	"github.com/chainstate/statecache/statecache"
	"github.com/chainstate/statecache/storage/ldb"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var demoCommand = cli.Command{
	Action: run(demo),
	Name:   "demo",
	Usage:  "runs simulated blocks through a state cache and prints its state root",
	Flags: []cli.Flag{
		&blocksFlag,
	},
}

var saveCommand = cli.Command{
	Action: run(save),
	Name:   "save",
	Usage:  "runs simulated blocks and stores the resulting state in a snapshot directory",
	Flags: []cli.Flag{
		&blocksFlag,
		&dirFlag,
	},
}

func demo(ctx *cli.Context, env *environment) error {
	state, err := simulate(ctx, env, ctx.Uint(blocksFlag.Name))
	if err != nil {
		return err
	}
	return printSummary(state)
}

func save(ctx *cli.Context, env *environment) (err error) {
	state, err := simulate(ctx, env, ctx.Uint(blocksFlag.Name))
	if err != nil {
		return err
	}
	dir := ctx.String(dirFlag.Name)
	store, err := ldb.Open(dir)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()
	count, err := state.Save(store)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d elements to %s\n", count, dir)
	return printSummary(state)
}

// expiryLogger reports pipeline notifications.
type expiryLogger struct {
	log *zap.Logger
}

func (l expiryLogger) Notify(n pipeline.Notification) error {
	l.log.Info("expiry",
		zap.String("cache", n.Cache),
		zap.Stringer("kind", n.Kind),
		zap.Stringer("height", n.Height),
		zap.Int("keys", len(n.Keys)),
	)
	return nil
}

// simulate runs the given number of synthetic blocks through a new state
// cache. Every block adds an account, a mosaic, a lock and a transaction
// hash; every tenth block registers a namespace and a multisig account.
func simulate(ctx *cli.Context, env *environment, blocks uint) (*statecache.StateCache, error) {
	state, err := env.newStateCache()
	if err != nil {
		return nil, err
	}
	subscriber := expiryLogger{log: env.log}
	interruptible, cancel := interrupt.Register(ctx.Context, env.log)
	defer cancel()
	for h := common.Height(1); h <= common.Height(blocks); h++ {
		delta, err := state.CreateDelta()
		if err != nil {
			return nil, err
		}
		err = errors.Join(
			applyBlock(delta, h, env.config.HashRetention),
			delta.Advance(interruptible, h, subscriber),
		)
		if err == nil {
			err = state.Commit()
		}
		delta.Release()
		if err != nil {
			return nil, interrupt.Translate(fmt.Errorf("failed to process block %v: %w", h, err))
		}
	}
	return state, nil
}

func applyBlock(d *statecache.Delta, h common.Height, hashRetention uint64) error {
	n := int(h)
	owner := common.AddressFromNumber(n)
	errs := []error{
		d.Accounts.Insert(account.NewState(owner, h)),
		account.Credit(d.Accounts, owner, common.MosaicId(n%5), amount.New(uint64(n)*1000)),
		d.Mosaics.Insert(mosaic.Entry{
			Id: common.MosaicId(n),
			Definition: mosaic.Definition{
				Owner:       owner,
				StartHeight: h,
				Duration:    uint64(n%4) * 25,
				Flags:       mosaic.FlagTransferable,
			},
			Supply: amount.New(uint64(n)),
		}),
		d.Locks.Insert(lock.Info{
			Hash:   common.HashFromNumber(n),
			Owner:  owner,
			Mosaic: common.MosaicId(n),
			Amount: amount.New(10),
			Expiry: h + 20,
		}),
		d.Hashes.Insert(hashcache.NewEntry(common.Keccak256(owner[:]), common.Timestamp(n)*15000, h, hashRetention)),
		d.Difficulties.Insert(difficulty.Info{Height: h, Timestamp: common.Timestamp(n) * 15000, Difficulty: common.Difficulty(1000 + n%7)}),
		d.Statistics.Insert(statistic.BlockStatistic{Height: h, Timestamp: common.Timestamp(n) * 15000, FeeMultiplier: 100, TransactionCount: uint32(n % 13)}),
	}
	if n%2 == 0 {
		errs = append(errs, lock.MarkUsed(d.Locks, common.HashFromNumber(n-1), h))
	}
	if n%10 == 0 {
		errs = append(errs,
			d.Namespaces.Insert(namespace.NewHistory(common.NamespaceId(n), namespace.Root{Owner: owner, Start: h, End: h + 50})),
			namespace.AddChild(d.Namespaces, namespace.Child{Id: common.NamespaceId(n + 1), Parent: common.NamespaceId(n), Root: common.NamespaceId(n)}),
			multisig.AddCosignatory(d.Multisigs, owner, common.AddressFromNumber(n-1)),
		)
	}
	return errors.Join(errs...)
}

func printSummary(state *statecache.StateCache) error {
	view := state.CreateView()
	defer view.Release()
	sizes := view.Sizes()
	for _, name := range state.Names() {
		fmt.Printf("%-12s %d\n", name, sizes[name])
	}
	root, err := state.StateRoot()
	if err != nil {
		return err
	}
	fmt.Printf("State root: %v\n", root)
	fmt.Printf("Memory: %v", state.GetMemoryFootprint())
	return nil
}
