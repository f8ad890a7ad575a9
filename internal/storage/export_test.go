package storage

import "github.com/dgraph-io/badger/v3"

// storeRaw пишет значение в обход сжатия, чтобы получить повреждённую запись
func (s *BadgerStore) storeRaw(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(structureKeyPrefix+key), value)
	})
}
