package storage

import (
	"github.com/pkg/errors"
)

// ErrColumnExists is returned when backing storage is requested twice for
// the same column id
var ErrColumnExists = errors.New("column storage already exists")

// Store owns the backing storage of every realised column in a dataset and
// the string table their text cells share
type Store struct {
	columns     map[int]*Column
	strings     *StringTable
	rowCount    int
	allocations int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		columns: make(map[int]*Column),
		strings: NewStringTable(),
	}
}

// NewColumn allocates backing storage for the column with the given id,
// sized to the store's row count
func (s *Store) NewColumn(id int) (*Column, error) {
	if _, ok := s.columns[id]; ok {
		return nil, errors.Wrapf(ErrColumnExists, "column id %d", id)
	}
	col := newColumn(id, s.strings)
	col.SetRowCount(s.rowCount)
	s.columns[id] = col
	s.allocations++
	return col, nil
}

// Column returns the backing storage for id
func (s *Store) Column(id int) (*Column, bool) {
	col, ok := s.columns[id]
	return col, ok
}

// RemoveColumn releases the backing storage for id
func (s *Store) RemoveColumn(id int) {
	col, ok := s.columns[id]
	if !ok {
		return
	}
	col.SetRowCount(0)
	delete(s.columns, id)
}

// RowCount returns the number of rows in every column
func (s *Store) RowCount() int {
	return s.rowCount
}

// SetRowCount resizes every column
func (s *Store) SetRowCount(n int) {
	if n < 0 {
		n = 0
	}
	s.rowCount = n
	for _, col := range s.columns {
		col.SetRowCount(n)
	}
}

// ColumnCount returns the number of columns with backing storage
func (s *Store) ColumnCount() int {
	return len(s.columns)
}

// Allocations returns how many times column storage has been allocated
func (s *Store) Allocations() int {
	return s.allocations
}

// Strings returns the shared string table
func (s *Store) Strings() *StringTable {
	return s.strings
}
