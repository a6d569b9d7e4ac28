package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"creditguild/storage"
)

var (
	errTxnClosed = errors.New("state: transaction already finalised")
	rolePrefix   = []byte("role:")
)

// Manager owns the persistent key-value store backing every protocol
// component. All reads and writes go through a Txn so that an operation either
// commits every write it made or none of them.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a write-buffered transaction. Writes stay in memory until Commit.
func (m *Manager) Begin() *Txn {
	return &Txn{
		db:      m.db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

// Txn is a read-your-writes overlay on top of the database.
type Txn struct {
	db      storage.Database
	dirty   map[string][]byte
	deleted map[string]struct{}
	closed  bool
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return buf
}

func (t *Txn) raw(hashed []byte) ([]byte, error) {
	if t.closed {
		return nil, errTxnClosed
	}
	k := string(hashed)
	if _, gone := t.deleted[k]; gone {
		return nil, nil
	}
	if v, ok := t.dirty[k]; ok {
		return v, nil
	}
	data, err := t.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *Txn) write(hashed []byte, value []byte) error {
	if t.closed {
		return errTxnClosed
	}
	k := string(hashed)
	delete(t.deleted, k)
	t.dirty[k] = value
	return nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
func (t *Txn) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return t.write(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (t *Txn) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := t.raw(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the key. Missing keys are ignored.
func (t *Txn) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if t.closed {
		return errTxnClosed
	}
	k := string(kvKey(key))
	delete(t.dirty, k)
	t.deleted[k] = struct{}{}
	return nil
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (t *Txn) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := t.raw(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return t.write(hashed, encoded)
}

// KVGetList decodes an RLP list stored under key into the destination slice
// pointer. A missing key yields an empty slice.
func (t *Txn) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := t.raw(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (t *Txn) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := t.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool { return bytes.Compare(members[i], members[j]) < 0 })
	return t.KVPut(roleKey(trimmed), members)
}

// RevokeRole removes the address from the role. Revoking an absent member is a
// no-op.
func (t *Txn) RevokeRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	members, err := t.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(members) {
		return nil
	}
	return t.KVPut(roleKey(trimmed), kept)
}

// RoleMembers returns all addresses assigned to the provided role.
func (t *Txn) RoleMembers(role string) ([][]byte, error) {
	var members [][]byte
	if err := t.KVGetList(roleKey(strings.TrimSpace(role)), &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Read failures are reported as false.
func (t *Txn) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := t.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// Commit flushes every buffered write in a single database batch.
func (t *Txn) Commit() error {
	if t.closed {
		return errTxnClosed
	}
	t.closed = true
	if len(t.dirty) == 0 && len(t.deleted) == 0 {
		return nil
	}
	batch := t.db.NewBatch()
	for k := range t.deleted {
		batch.Delete([]byte(k))
	}
	for k, v := range t.dirty {
		batch.Put([]byte(k), v)
	}
	return batch.Write()
}

// Discard drops every buffered write. Calling Discard after Commit is a no-op,
// which lets callers defer it unconditionally.
func (t *Txn) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	t.dirty = nil
	t.deleted = nil
}
