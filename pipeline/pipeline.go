// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package pipeline drives the height-dependent processing of caches. For
// every new block height it touches all registered caches and, on a
// schedule, prunes them. The keys reported by the caches are forwarded to
// subscribers, which turn them into domain-level side effects such as
// expiry receipts or refunds.
package pipeline

//go:generate mockgen -source pipeline.go -destination pipeline_mocks.go -package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/common/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Kind distinguishes touch from prune notifications.
type Kind byte

const (
	Touched Kind = iota
	Pruned
)

func (k Kind) String() string {
	switch k {
	case Touched:
		return "touched"
	case Pruned:
		return "pruned"
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// Notification reports the keys of a cache affected at a height.
type Notification struct {
	Cache  string
	Kind   Kind
	Height common.Height
	Keys   [][]byte
}

// Subscriber receives the notifications of a pipeline.
type Subscriber interface {
	Notify(Notification) error
}

// Stage is a cache taking part in height processing.
type Stage interface {
	Name() string
	Touch(common.Height) ([][]byte, error)
	Prune(common.Height) ([][]byte, error)
}

// Schedule configures when caches are pruned. Every PruneInterval heights
// the caches are pruned up to the current height minus GracePeriod. A
// zero interval disables pruning.
type Schedule struct {
	PruneInterval uint64
	GracePeriod   uint64
}

// PruneHeight returns the height to prune at when processing the given
// height, if any.
func (s Schedule) PruneHeight(height common.Height) (common.Height, bool) {
	if s.PruneInterval == 0 || uint64(height)%s.PruneInterval != 0 || uint64(height) <= s.GracePeriod {
		return 0, false
	}
	return height - common.Height(s.GracePeriod), true
}

// Pipeline processes block heights on a set of stages. Stages are
// processed in the order of their names.
type Pipeline struct {
	schedule    Schedule
	stages      *xsync.MapOf[string, Stage]
	subscribers []Subscriber
	log         *zap.Logger
}

// New creates a pipeline without stages.
func New(schedule Schedule, log *zap.Logger, subscribers ...Subscriber) *Pipeline {
	return &Pipeline{
		schedule:    schedule,
		stages:      xsync.NewMapOf[string, Stage](),
		subscribers: subscribers,
		log:         logger.OrNop(log),
	}
}

// Register adds a stage. Stage names must be unique.
func (p *Pipeline) Register(stage Stage) error {
	if _, loaded := p.stages.LoadOrStore(stage.Name(), stage); loaded {
		return fmt.Errorf("%w: stage %s is already registered", common.ErrInvalidArgument, stage.Name())
	}
	return nil
}

// Unregister removes the stage with the given name.
func (p *Pipeline) Unregister(name string) {
	p.stages.Delete(name)
}

// Stages lists the names of all registered stages in processing order.
func (p *Pipeline) Stages() []string {
	res := make([]string, 0, p.stages.Size())
	p.stages.Range(func(name string, _ Stage) bool {
		res = append(res, name)
		return true
	})
	slices.Sort(res)
	return res
}

// Process runs the touch and, if scheduled, the prune phase for the given
// height. Processing stops at the first failing stage or subscriber.
func (p *Pipeline) Process(ctx context.Context, height common.Height) error {
	names := p.Stages()
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.run(name, Touched, height, height); err != nil {
			return err
		}
	}
	pruneHeight, prune := p.schedule.PruneHeight(height)
	if !prune {
		return nil
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.run(name, Pruned, height, pruneHeight); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) run(name string, kind Kind, height, target common.Height) error {
	stage, found := p.stages.Load(name)
	if !found {
		return nil
	}
	operation, verb := stage.Touch, "touch"
	if kind == Pruned {
		operation, verb = stage.Prune, "prune"
	}
	keys, err := operation(target)
	if err != nil {
		return fmt.Errorf("failed to %s %s at %v: %w", verb, name, target, err)
	}
	if len(keys) == 0 {
		return nil
	}
	p.log.Debug("stage processed",
		zap.String("stage", name),
		zap.Stringer("kind", kind),
		zap.Stringer("height", target),
		zap.Int("keys", len(keys)),
	)
	notification := Notification{Cache: name, Kind: kind, Height: target, Keys: keys}
	errs := []error{}
	for _, subscriber := range p.subscribers {
		if err := subscriber.Notify(notification); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to notify subscribers while processing %v: %w", height, err)
	}
	return nil
}

// DeltaStage adapts the delta of a height-indexed cache to a pipeline
// stage.
func DeltaStage[K deltaset.Key, V any](name string, delta *cache.Delta[K, V]) Stage {
	return &deltaStage[K, V]{name: name, delta: delta}
}

// PruneStage adapts a cache delta to a stage that is only pruned. It is
// used for caches whose touched keys are of no interest.
func PruneStage[K deltaset.Key, V any](name string, delta *cache.Delta[K, V]) Stage {
	return &deltaStage[K, V]{name: name, delta: delta, pruneOnly: true}
}

type deltaStage[K deltaset.Key, V any] struct {
	name      string
	delta     *cache.Delta[K, V]
	pruneOnly bool
}

func (s *deltaStage[K, V]) Name() string {
	return s.name
}

func (s *deltaStage[K, V]) Touch(height common.Height) ([][]byte, error) {
	if s.pruneOnly {
		return nil, nil
	}
	keys, err := s.delta.Touch(height)
	return toBytes(keys), err
}

func (s *deltaStage[K, V]) Prune(height common.Height) ([][]byte, error) {
	keys, err := s.delta.Prune(height)
	return toBytes(keys), err
}

func toBytes[K deltaset.Key](keys []K) [][]byte {
	if len(keys) == 0 {
		return nil
	}
	res := make([][]byte, 0, len(keys))
	for _, key := range keys {
		res = append(res, key.ToBytes())
	}
	return res
}
