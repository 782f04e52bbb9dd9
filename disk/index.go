package disk

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/buntdb"
)

// metaIndex wraps a BuntDB handle holding JSON-encoded Item rows keyed by
// item key, with secondary indices by last-access-time and size. Grounded
// on dbdriver/bunt.go's marshal-then-store-as-string convention.
type metaIndex struct {
	db *buntdb.DB
}

const (
	idxByAccess = "by_access"
	idxBySize   = "by_size"
)

func openMetaIndex(path string) (*metaIndex, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open index: %v", ErrIndex, err)
	}
	if err := db.CreateIndex(idxByAccess, "*", buntdb.IndexJSON("lastAccessTime")); err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, fmt.Errorf("%w: create by_access index: %v", ErrIndex, err)
	}
	if err := db.CreateIndex(idxBySize, "*", buntdb.IndexJSON("size")); err != nil && err != buntdb.ErrIndexExists {
		db.Close()
		return nil, fmt.Errorf("%w: create by_size index: %v", ErrIndex, err)
	}
	return &metaIndex{db: db}, nil
}

func (m *metaIndex) Close() error {
	if err := m.db.Close(); err != nil {
		return fmt.Errorf("%w: close index: %v", ErrIndex, err)
	}
	return nil
}

func (m *metaIndex) upsert(it Item) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("%w: marshal item: %v", ErrSerialization, err)
	}
	err = m.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(it.Key, string(data), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: upsert item: %v", ErrIndex, err)
	}
	return nil
}

func (m *metaIndex) get(key string) (Item, bool, error) {
	var it Item
	var raw string
	err := m.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		raw = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("%w: get item: %v", ErrIndex, err)
	}
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return Item{}, false, fmt.Errorf("%w: unmarshal item: %v", ErrSerialization, err)
	}
	return it, true, nil
}

func (m *metaIndex) delete(key string) error {
	err := m.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: delete item: %v", ErrIndex, err)
	}
	return nil
}

func (m *metaIndex) count() (int, error) {
	n := 0
	err := m.db.View(func(tx *buntdb.Tx) error {
		var err error
		n, err = tx.Len()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrIndex, err)
	}
	return n, nil
}

// pageAscendingByAccess reads up to pageSize rows starting after afterKey,
// ordered by last_access_time ascending (oldest first). The page is read
// inside one read-only metadata transaction; callers that delete rows from
// it do so one row per transaction, not in a single transaction per page.
func (m *metaIndex) pageAscendingByAccess(afterKey string, pageSize int) ([]Item, error) {
	var items []Item
	skipping := afterKey != ""
	err := m.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(idxByAccess, func(key, value string) bool {
			if skipping {
				if key == afterKey {
					skipping = false
				}
				return true
			}
			var it Item
			if jsonErr := json.Unmarshal([]byte(value), &it); jsonErr != nil {
				return true // skip a corrupt row rather than abort the page
			}
			items = append(items, it)
			return len(items) < pageSize
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ascend by_access: %v", ErrIndex, err)
	}
	return items, nil
}

// allKeys returns every key currently indexed (used by reconciliation).
func (m *metaIndex) allKeys() ([]string, error) {
	var keys []string
	err := m.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("*", func(key, _ string) bool {
			keys = append(keys, key)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", ErrIndex, err)
	}
	return keys, nil
}

func (m *metaIndex) sumSize() (uint64, error) {
	var total uint64
	err := m.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(idxBySize, func(_, value string) bool {
			var it Item
			if jsonErr := json.Unmarshal([]byte(value), &it); jsonErr == nil {
				total += uint64(it.Size)
			}
			return true
		})
	})
	if err != nil {
		return 0, fmt.Errorf("%w: sum size: %v", ErrIndex, err)
	}
	return total, nil
}
