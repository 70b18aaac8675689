// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/cache/namespace"
	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/storage"
)

func TestStore_DirectoryIsLocked(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if _, err := Open(dir); err == nil {
		t.Errorf("store was opened twice")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
	store, err = Open(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStore_ValuesArePersisted(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	for i := byte(0); i < 10; i++ {
		if err := store.Put(storage.LockTable, []byte{i}, []byte{i * 2}); err != nil {
			t.Fatalf("failed to put: %v", err)
		}
	}
	if err := store.Put(storage.MetaTable, []byte{1}, []byte{1}); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if err := store.DeleteTable(storage.MetaTable); err != nil {
		t.Fatalf("failed to delete table: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	store, err = Open(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()
	count := 0
	err = store.ForEach(storage.LockTable, func(key, value []byte) error {
		if len(key) != 1 || value[0] != key[0]*2 {
			t.Errorf("unexpected entry %x -> %x", key, value)
		}
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("failed to iterate: %v", err)
	}
	if count != 10 {
		t.Errorf("unexpected number of entries: %d", count)
	}
	if _, found, err := store.Get(storage.MetaTable, []byte{1}); err != nil || found {
		t.Errorf("deleted entry still present (err: %v)", err)
	}
	if store.GetMemoryFootprint().Total() == 0 {
		t.Errorf("memory footprint not reported")
	}
}

func TestStore_NamespaceCacheSurvivesReopening(t *testing.T) {
	dir := t.TempDir()
	newCache := func() *cache.Cache[common.NamespaceId, namespace.History] {
		res, err := namespace.New(cache.Options[common.NamespaceId, namespace.History]{Metrics: metrics.NewSet()})
		if err != nil {
			t.Fatalf("failed to create cache: %v", err)
		}
		return res
	}
	codec, err := storage.NewCodec[namespace.History](storage.CodecMsgpack)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}

	source := newCache()
	delta, err := source.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	owner := common.AddressFromNumber(1)
	if err := delta.Insert(namespace.NewHistory(1, namespace.Root{Owner: owner, Start: 1, End: 10})); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := delta.Insert(namespace.NewHistory(1, namespace.Root{Owner: owner, Start: 10, End: 20})); err != nil {
		t.Fatalf("failed to renew: %v", err)
	}
	if err := namespace.AddChild(delta, namespace.Child{Id: 2, Parent: 1, Root: 1}); err != nil {
		t.Fatalf("failed to add child: %v", err)
	}
	if err := source.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	delta.Release()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	view := source.CreateView()
	defer view.Release()
	if _, err := storage.Save(store, storage.NamespaceTable, codec, view); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	store, err = Open(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()
	target := newCache()
	if _, err := storage.Load(store, storage.NamespaceTable, codec, target); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	loaded := target.CreateView()
	defer loaded.Release()
	want, _ := view.Find(1).TryGet()
	got, err := loaded.Find(1).Get()
	if err != nil {
		t.Fatalf("namespace missing after reload: %v", err)
	}
	if !want.Equal(got) {
		t.Errorf("namespace changed by reload, wanted %v, got %v", want, got)
	}
}
