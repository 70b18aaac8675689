// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package interrupt

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/common/logger"
	"go.uber.org/zap"
)

const ErrCanceled = common.ConstError("interrupted")

// IsCancelled returns true if the given context's CancelFunc has been called.
func IsCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Register creates a context that is canceled on SIGTERM or SIGINT, letting
// long running operations stop between two blocks. The returned function
// stops listening for signals.
func Register(parent context.Context, log *zap.Logger) (context.Context, context.CancelFunc) {
	log = logger.OrNop(log)
	ctx, cancel := context.WithCancel(parent)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			log.Warn("interrupted, finishing current block", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Translate maps context cancellation to ErrCanceled, leaving other errors
// untouched.
func Translate(err error) error {
	if errors.Is(err, context.Canceled) {
		return errors.Join(ErrCanceled, err)
	}
	return err
}
