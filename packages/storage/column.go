package storage

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ChunkRows is the number of cells held by one column chunk
const ChunkRows = 256

// chunk holds ChunkRows cells using the array that matches the owning
// column's data type. the other two arrays stay nil.
type chunk struct {
	ints   []int32
	floats []float64
	strs   []uint32
}

func newChunk(dt DataType) *chunk {
	ch := &chunk{}
	switch dt {
	case DataTypeInteger:
		ch.ints = make([]int32, ChunkRows)
		for i := range ch.ints {
			ch.ints[i] = MissingInt
		}
	case DataTypeDecimal:
		ch.floats = make([]float64, ChunkRows)
		for i := range ch.floats {
			ch.floats[i] = MissingFloat()
		}
	case DataTypeText:
		ch.strs = make([]uint32, ChunkRows)
	}
	return ch
}

// Column is the backing storage of a realised column.
//
// values live in fixed-size chunks allocated as the row count grows. text
// cells hold ids into the store's shared StringTable.
type Column struct {
	id             int
	name           string
	importName     string
	description    string
	columnType     ColumnType
	dataType       DataType
	measureType    MeasureType
	autoMeasure    bool
	active         bool
	trimLevels     bool
	dps            int
	formula        string
	formulaMessage string
	levels         []Level
	rowCount       int
	changes        int
	chunks         []*chunk
	strings        *StringTable
}

func newColumn(id int, strings *StringTable) *Column {
	return &Column{
		id:          id,
		dataType:    DataTypeInteger,
		measureType: MeasureTypeNone,
		autoMeasure: true,
		active:      true,
		trimLevels:  true,
		strings:     strings,
	}
}

func (c *Column) ID() int { return c.id }
func (c *Column) Name() string { return c.name }
func (c *Column) SetName(name string) { c.name = name }
func (c *Column) ImportName() string { return c.importName }
func (c *Column) SetImportName(name string) { c.importName = name }
func (c *Column) Description() string { return c.description }
func (c *Column) SetDescription(s string) { c.description = s }
func (c *Column) ColumnType() ColumnType { return c.columnType }
func (c *Column) SetColumnType(t ColumnType) { c.columnType = t }
func (c *Column) DataType() DataType { return c.dataType }
func (c *Column) MeasureType() MeasureType { return c.measureType }
func (c *Column) SetMeasureType(t MeasureType) { c.measureType = t }
func (c *Column) AutoMeasure() bool { return c.autoMeasure }
func (c *Column) SetAutoMeasure(v bool) { c.autoMeasure = v }
func (c *Column) Active() bool { return c.active }
func (c *Column) SetActive(v bool) { c.active = v }
func (c *Column) TrimLevels() bool { return c.trimLevels }
func (c *Column) SetTrimLevels(v bool) { c.trimLevels = v }
func (c *Column) DPS() int { return c.dps }
func (c *Column) SetDPS(dps int) { c.dps = dps }
func (c *Column) Formula() string { return c.formula }
func (c *Column) SetFormula(f string) { c.formula = f }
func (c *Column) FormulaMessage() string { return c.formulaMessage }
func (c *Column) SetFormulaMessage(msg string) { c.formulaMessage = msg }
func (c *Column) RowCount() int { return c.rowCount }
func (c *Column) Changes() int { return c.changes }

// ResetChanges clears the change counter
func (c *Column) ResetChanges() {
	c.changes = 0
}

// SetRowCount grows or shrinks the column. new cells are missing.
func (c *Column) SetRowCount(n int) {
	if n < 0 {
		n = 0
	}
	if n < c.rowCount && c.dataType == DataTypeText {
		for row := n; row < c.rowCount; row++ {
			ch := c.chunks[row/ChunkRows]
			i := row % ChunkRows
			if ch.strs[i] != 0 {
				c.strings.Release(ch.strs[i])
				ch.strs[i] = 0
			}
		}
	}

	need := (n + ChunkRows - 1) / ChunkRows
	for len(c.chunks) < need {
		c.chunks = append(c.chunks, newChunk(c.dataType))
	}
	if len(c.chunks) > need {
		c.chunks = c.chunks[:need]
	}

	// cells past the old end of a partially used chunk may hold stale values
	if n > c.rowCount {
		for row := c.rowCount; row < n && row%ChunkRows != 0; row++ {
			c.clear(row)
		}
	}
	c.rowCount = n
}

func (c *Column) clear(row int) {
	ch := c.chunks[row/ChunkRows]
	i := row % ChunkRows
	switch c.dataType {
	case DataTypeInteger:
		ch.ints[i] = MissingInt
	case DataTypeDecimal:
		ch.floats[i] = MissingFloat()
	case DataTypeText:
		if ch.strs[i] != 0 {
			c.strings.Release(ch.strs[i])
		}
		ch.strs[i] = 0
	}
}

// IntAt returns the cell at row as an integer
func (c *Column) IntAt(row int) int32 {
	if row < 0 || row >= c.rowCount {
		return MissingInt
	}
	ch := c.chunks[row/ChunkRows]
	i := row % ChunkRows
	switch c.dataType {
	case DataTypeDecimal:
		return FloatToInt(ch.floats[i])
	case DataTypeText:
		return TextToInt(c.strings.Lookup(ch.strs[i]))
	default:
		return ch.ints[i]
	}
}

// FloatAt returns the cell at row as a decimal
func (c *Column) FloatAt(row int) float64 {
	if row < 0 || row >= c.rowCount {
		return MissingFloat()
	}
	ch := c.chunks[row/ChunkRows]
	i := row % ChunkRows
	switch c.dataType {
	case DataTypeInteger:
		return IntToFloat(ch.ints[i])
	case DataTypeText:
		return TextToFloat(c.strings.Lookup(ch.strs[i]))
	default:
		return ch.floats[i]
	}
}

// TextAt returns the cell at row as text. integer cells with a level use
// the level's label.
func (c *Column) TextAt(row int) string {
	if row < 0 || row >= c.rowCount {
		return ""
	}
	ch := c.chunks[row/ChunkRows]
	i := row % ChunkRows
	switch c.dataType {
	case DataTypeInteger:
		v := ch.ints[i]
		if label, err := c.LabelFor(v); err == nil && len(c.levels) > 0 {
			return label
		}
		return IntToText(v)
	case DataTypeDecimal:
		return FloatToText(ch.floats[i])
	default:
		return c.strings.Lookup(ch.strs[i])
	}
}

func (c *Column) ensureRow(row int) {
	if row >= c.rowCount {
		c.SetRowCount(row + 1)
	}
}

func (c *Column) touched(initing bool) {
	if !initing {
		c.changes++
	}
}

// SetInt stores an integer at row, converting it to the column's data type.
// writes made while initing do not count as changes.
func (c *Column) SetInt(row int, v int32, initing bool) {
	if row < 0 {
		return
	}
	c.ensureRow(row)
	ch := c.chunks[row/ChunkRows]
	i := row % ChunkRows
	switch c.dataType {
	case DataTypeInteger:
		ch.ints[i] = v
	case DataTypeDecimal:
		ch.floats[i] = IntToFloat(v)
	case DataTypeText:
		c.putText(ch, i, IntToText(v))
	}
	c.touched(initing)
}

// SetFloat stores a decimal at row, converting it to the column's data type
func (c *Column) SetFloat(row int, v float64, initing bool) {
	if row < 0 {
		return
	}
	c.ensureRow(row)
	ch := c.chunks[row/ChunkRows]
	i := row % ChunkRows
	switch c.dataType {
	case DataTypeInteger:
		ch.ints[i] = FloatToInt(v)
	case DataTypeDecimal:
		ch.floats[i] = v
	case DataTypeText:
		c.putText(ch, i, FloatToText(v))
	}
	c.touched(initing)
}

// SetText stores text at row, converting it to the column's data type
func (c *Column) SetText(row int, v string, initing bool) {
	if row < 0 {
		return
	}
	c.ensureRow(row)
	ch := c.chunks[row/ChunkRows]
	i := row % ChunkRows
	switch c.dataType {
	case DataTypeInteger:
		ch.ints[i] = TextToInt(v)
	case DataTypeDecimal:
		ch.floats[i] = TextToFloat(v)
	case DataTypeText:
		c.putText(ch, i, v)
	}
	c.touched(initing)
}

func (c *Column) putText(ch *chunk, i int, v string) {
	old := ch.strs[i]
	ch.strs[i] = c.strings.Intern(v)
	if old != 0 {
		c.strings.Release(old)
	}
}

// SetDataType re-encodes every cell in the new data type
func (c *Column) SetDataType(dt DataType) {
	if dt == c.dataType {
		return
	}

	old := *c
	chunks := make([]*chunk, len(c.chunks))
	for i := range chunks {
		chunks[i] = newChunk(dt)
	}
	c.chunks = chunks
	c.dataType = dt

	for row := 0; row < old.rowCount; row++ {
		ch := chunks[row/ChunkRows]
		i := row % ChunkRows
		switch dt {
		case DataTypeInteger:
			ch.ints[i] = old.IntAt(row)
		case DataTypeDecimal:
			ch.floats[i] = old.FloatAt(row)
		case DataTypeText:
			ch.strs[i] = c.strings.Intern(old.TextAt(row))
		}
	}

	if old.dataType == DataTypeText {
		for _, ch := range old.chunks {
			for _, id := range ch.strs {
				if id != 0 {
					c.strings.Release(id)
				}
			}
		}
	}
	if dt != DataTypeDecimal {
		c.dps = 0
	}
}

// Levels returns a copy of the column's label table
func (c *Column) Levels() []Level {
	levels := make([]Level, len(c.levels))
	copy(levels, c.levels)
	return levels
}

// LevelCount returns the number of levels
func (c *Column) LevelCount() int {
	return len(c.levels)
}

// HasLevels reports whether cell values should be read through the label
// table. only nominal and ordinal columns that actually carry levels do.
func (c *Column) HasLevels() bool {
	if len(c.levels) == 0 {
		return false
	}
	return c.measureType == MeasureTypeNominal || c.measureType == MeasureTypeOrdinal
}

// ClearLevels empties the label table
func (c *Column) ClearLevels() {
	c.levels = c.levels[:0]
}

// AppendLevel adds a level at the end of the table. a value that already
// has a level is left alone.
func (c *Column) AppendLevel(value int32, label, importValue string) {
	if c.hasLevelValue(value) {
		return
	}
	if importValue == "" {
		importValue = label
	}
	c.levels = append(c.levels, Level{Value: value, Label: label, ImportValue: importValue})
}

// InsertLevel adds a level keeping the table ordered by value
func (c *Column) InsertLevel(value int32, label, importValue string) {
	if c.hasLevelValue(value) {
		return
	}
	c.AppendLevel(value, label, importValue)
	sort.SliceStable(c.levels, func(i, j int) bool {
		return c.levels[i].Value < c.levels[j].Value
	})
}

// RemoveLevel drops the level for value if present
func (c *Column) RemoveLevel(value int32) {
	for i, l := range c.levels {
		if l.Value == value {
			c.levels = append(c.levels[:i], c.levels[i+1:]...)
			return
		}
	}
}

func (c *Column) hasLevelValue(value int32) bool {
	for _, l := range c.levels {
		if l.Value == value {
			return true
		}
	}
	return false
}

// HasLevel reports whether label names a level
func (c *Column) HasLevel(label string) bool {
	_, err := c.ValueForLabel(label)
	return err == nil
}

// LabelFor returns the label of value. the missing marker has the empty
// label; any other value without a level is an error.
func (c *Column) LabelFor(value int32) (string, error) {
	if value == MissingInt {
		return "", nil
	}
	for _, l := range c.levels {
		if l.Value == value {
			return l.Label, nil
		}
	}
	return "", errors.Errorf("level %d not found in %q", value, c.name)
}

// ValueForLabel returns the value whose level carries label
func (c *Column) ValueForLabel(label string) (int32, error) {
	if label == "" {
		return MissingInt, nil
	}
	for _, l := range c.levels {
		if l.Label == label {
			return l.Value, nil
		}
	}
	return MissingInt, errors.Errorf("label %q not found in %q", label, c.name)
}

// DetermineDPS recomputes the decimal places needed to display the column
func (c *Column) DetermineDPS() {
	if c.dataType != DataTypeDecimal {
		c.dps = 0
		return
	}

	dps := 0
	for row := 0; row < c.rowCount && dps < MaxDPS; row++ {
		v := c.FloatAt(row)
		if IsMissingFloat(v) || math.IsInf(v, 0) {
			continue
		}
		places := int(-decimal.NewFromFloat(v).Exponent())
		if places > dps {
			dps = places
		}
	}
	if dps > MaxDPS {
		dps = MaxDPS
	}
	c.dps = dps
}
