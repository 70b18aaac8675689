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

	"github.com/chainstate/statecache/storage/ldb"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var dumpCommand = cli.Command{
	Action: run(dump),
	Name:   "dump",
	Usage:  "loads a snapshot directory and prints summary information",
	Flags: []cli.Flag{
		&dirFlag,
	},
}

func dump(ctx *cli.Context, env *environment) (err error) {
	dir := ctx.String(dirFlag.Name)
	env.log.Info("opening snapshot", zap.String("dir", dir))
	store, err := ldb.Open(dir)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()
	state, err := env.newStateCache()
	if err != nil {
		return err
	}
	count, err := state.Load(store)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d elements from %s\n", count, dir)
	return printSummary(state)
}
