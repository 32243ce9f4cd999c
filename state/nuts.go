package state

import (
	"github.com/pkg/errors"
	"github.com/xujiajun/nutsdb"

	"github.com/RuiFG/streaming-trigger/log"
)

// nuts writes state through to a nutsdb database, one bucket per namespace,
// and serves reads from memory.
type nuts struct {
	logger log.Logger
	dir    string
	db     *nutsdb.DB
	cache  *memory
	closed bool
}

func (n *nuts) init() error {
	return n.db.View(func(tx *nutsdb.Tx) error {
		var buckets []string
		if err := tx.IterateBuckets(nutsdb.DataStructureBPTree, "*", func(bucket string) bool {
			buckets = append(buckets, bucket)
			return true
		}); err != nil {
			return errors.WithMessage(err, "unable to iterate namespaces, the state maybe corrupted")
		}
		for _, bucket := range buckets {
			ns, err := parseBucket(bucket)
			if err != nil {
				return err
			}
			entries, err := tx.GetAll(bucket)
			if err != nil {
				if errors.Is(err, nutsdb.ErrBucketEmpty) {
					continue
				}
				return errors.WithMessagef(err, "failed to load namespace %s", ns)
			}
			for _, entry := range entries {
				_ = n.cache.Set(ns, string(entry.Key), entry.Value)
			}
		}
		n.logger.Infof("loaded %d namespaces from %s", len(buckets), n.dir)
		return nil
	})
}

func (n *nuts) Get(ns Namespace, field string) ([]byte, bool, error) {
	return n.cache.Get(ns, field)
}

func (n *nuts) Set(ns Namespace, field string, value []byte) error {
	if err := n.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(formatBucket(ns), []byte(field), value, nutsdb.Persistent)
	}); err != nil {
		return errors.WithMessagef(err, "failed to persist %s of %s", field, ns)
	}
	return n.cache.Set(ns, field, value)
}

func (n *nuts) Clear(ns Namespace, field string) error {
	if !n.cache.has(ns, field) {
		return nil
	}
	if err := n.db.Update(func(tx *nutsdb.Tx) error {
		return tx.Delete(formatBucket(ns), []byte(field))
	}); err != nil {
		return errors.WithMessagef(err, "failed to delete %s of %s", field, ns)
	}
	return n.cache.Clear(ns, field)
}

func (n *nuts) ClearNamespace(ns Namespace) error {
	fields := n.cache.fields(ns, false)
	if fields == nil {
		return nil
	}
	bucket := formatBucket(ns)
	if err := n.db.Update(func(tx *nutsdb.Tx) error {
		var err error
		fields.Range(func(field, _ any) bool {
			err = tx.Delete(bucket, []byte(field.(string)))
			return err == nil
		})
		if err != nil {
			return err
		}
		if err := tx.DeleteBucket(nutsdb.DataStructureBPTree, bucket); err != nil && !errors.Is(err, nutsdb.ErrBucketNotFound) {
			return err
		}
		return nil
	}); err != nil {
		return errors.WithMessagef(err, "failed to delete namespace %s", ns)
	}
	return n.cache.ClearNamespace(ns)
}

func (n *nuts) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	//merge refuses a database with a single data file, so the error is routine
	if err := n.db.Merge(); err != nil {
		n.logger.Debugw("state files not merged", "dir", n.dir, "err", err)
	}
	return n.db.Close()
}

// NewNutsStore opens (or creates) a nutsdb database under dir and loads the
// state it holds.
func NewNutsStore(logger log.Logger, dir string) (Store, error) {
	opts := nutsdb.DefaultOptions
	opts.Dir = dir
	opts.SegmentSize = 8 * nutsdb.MB
	db, err := nutsdb.Open(opts)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to open state dir %s", dir)
	}
	store := &nuts{logger: logger, dir: dir, db: db, cache: newMemory()}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
