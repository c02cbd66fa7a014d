package dataset_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vogtb/go-datasheet/packages/compute"
	"github.com/vogtb/go-datasheet/packages/dataset"
	"github.com/vogtb/go-datasheet/packages/storage"
)

var _ = Describe("Column", func() {
	var ds *dataset.Dataset

	BeforeEach(func() {
		ds = dataset.New(dataset.WithLogger(logger))
		ds.SetRowCount(3)
	})

	Context("while virtual", func() {
		var c *dataset.Column

		BeforeEach(func() {
			c = ds.AppendColumn()
		})

		It("should read as an empty integer column", func() {
			Expect(c.IsVirtual()).To(BeTrue())
			Expect(c.Name()).To(BeEmpty())
			Expect(c.ImportName()).To(BeEmpty())
			Expect(c.ColumnType()).To(Equal(storage.ColumnTypeNone))
			Expect(c.DataType()).To(Equal(storage.DataTypeInteger))
			Expect(c.MeasureType()).To(Equal(storage.MeasureTypeNone))
			Expect(c.Formula()).To(BeEmpty())
			Expect(c.FormulaMessage()).To(BeEmpty())
			Expect(c.FormulaStatus()).To(Equal(dataset.FormulaEmpty))
			Expect(c.DPS()).To(Equal(0))
			Expect(c.Active()).To(BeTrue())
			Expect(c.TrimLevels()).To(BeTrue())
			Expect(c.AutoMeasure()).To(BeTrue())
			Expect(c.RowCount()).To(Equal(0))
			Expect(c.Levels()).To(BeEmpty())
			Expect(c.HasLevels()).To(BeFalse())
			Expect(c.NeedsRecalc()).To(BeFalse())
		})

		It("should read missing values", func() {
			v := c.Value(0)
			Expect(v.Int).To(Equal(missing))
			Expect(v.Label).To(BeEmpty())
			Expect(c.Raw(0).Int).To(Equal(missing))
			Expect(c.FValue(0, true).Int).To(Equal(missing))
			Expect(c.ValueForLabel("anything")).To(Equal(storage.MissingInt))
		})

		It("should not allocate when read", func() {
			_ = c.Value(1)
			_ = c.Levels()
			_ = c.Dependents()
			Expect(ds.Allocations()).To(Equal(0))
		})

		It("should refuse to look up labels", func() {
			_, err := c.GetLabel(1)
			Expect(err).To(MatchError(dataset.ErrVirtualColumn))
		})

		It("should allocate exactly once on first write", func() {
			Expect(c.SetValue(0, compute.Int(5))).To(Succeed())
			Expect(c.IsVirtual()).To(BeFalse())
			Expect(ds.Allocations()).To(Equal(1))

			c.SetName("A")
			c.SetMeasureType(storage.MeasureTypeContinuous)
			Expect(c.SetValue(1, compute.Int(6))).To(Succeed())
			Expect(ds.Allocations()).To(Equal(1))

			Expect(c.RowCount()).To(Equal(3))
			Expect(ints(c)).To(Equal([]int64{5, 6, missing}))
		})

		DescribeTable("every mutator realises the column",
			func(mutate func(c *dataset.Column)) {
				mutate(c)
				Expect(c.IsVirtual()).To(BeFalse())
				Expect(ds.Allocations()).To(Equal(1))
			},
			Entry("SetName", func(c *dataset.Column) { c.SetName("A") }),
			Entry("SetColumnType", func(c *dataset.Column) { c.SetColumnType(storage.ColumnTypeData) }),
			Entry("SetDataType", func(c *dataset.Column) { c.SetDataType(storage.DataTypeDecimal) }),
			Entry("SetMeasureType", func(c *dataset.Column) { c.SetMeasureType(storage.MeasureTypeOrdinal) }),
			Entry("SetFormula", func(c *dataset.Column) { c.SetFormula("1") }),
			Entry("SetActive", func(c *dataset.Column) { c.SetActive(false) }),
			Entry("SetDPS", func(c *dataset.Column) { c.SetDPS(2) }),
			Entry("SetTrimLevels", func(c *dataset.Column) { c.SetTrimLevels(false) }),
			Entry("SetAutoMeasure", func(c *dataset.Column) { c.SetAutoMeasure(false) }),
			Entry("AppendLevel", func(c *dataset.Column) { c.AppendLevel(1, "one", "") }),
			Entry("InsertLevel", func(c *dataset.Column) { c.InsertLevel(1, "one", "") }),
			Entry("ClearLevels", func(c *dataset.Column) { c.ClearLevels() }),
			Entry("Change", func(c *dataset.Column) {
				c.Change(storage.DataTypeText, storage.MeasureTypeNominal, nil)
			}),
			Entry("ClearAt", func(c *dataset.Column) { Expect(c.ClearAt(0)).To(Succeed()) }),
		)
	})

	Context("with levels", func() {
		var c *dataset.Column

		BeforeEach(func() {
			c = mustAddColumn(ds, "grade", storage.ColumnTypeData)
			c.Change(storage.DataTypeInteger, storage.MeasureTypeNominal, []storage.Level{
				{Value: 1, Label: "low"},
				{Value: 2, Label: "high"},
			})
		})

		It("should return values with their labels", func() {
			Expect(c.SetValue(0, compute.Int(2))).To(Succeed())
			Expect(c.HasLevels()).To(BeTrue())

			v := c.Value(0)
			Expect(v.Int).To(Equal(int64(2)))
			Expect(v.Label).To(Equal("high"))

			v = c.Value(1)
			Expect(v.Int).To(Equal(missing))
			Expect(v.Label).To(BeEmpty())
		})

		It("should store text through the label table", func() {
			Expect(c.SetValue(1, compute.Text("low"))).To(Succeed())
			Expect(c.Raw(1).Int).To(Equal(int64(1)))
			Expect(c.ValueForLabel("high")).To(Equal(int32(2)))

			label, err := c.GetLabel(2)
			Expect(err).NotTo(HaveOccurred())
			Expect(label).To(Equal("high"))
		})

		It("should reject unknown labels", func() {
			err := c.SetValue(2, compute.Text("medium"))
			Expect(err).To(HaveOccurred())
			Expect(c.Raw(2).Int).To(Equal(missing))
		})
	})

	It("should reject rows outside the dataset", func() {
		c := mustAddColumn(ds, "A", storage.ColumnTypeData)
		Expect(c.SetValue(3, compute.Int(1))).To(MatchError(dataset.ErrIndexOutOfRange))
		Expect(c.SetValue(-1, compute.Int(1))).To(MatchError(dataset.ErrIndexOutOfRange))
	})

	It("should grow the dataset on append", func() {
		a := mustAddColumn(ds, "A", storage.ColumnTypeData)
		b := mustAddColumn(ds, "B", storage.ColumnTypeData)
		Expect(a.Append(compute.Int(9))).To(Succeed())

		Expect(ds.RowCount()).To(Equal(4))
		Expect(a.Raw(3).Int).To(Equal(int64(9)))
		Expect(b.RowCount()).To(Equal(4))
		Expect(b.Raw(3).Int).To(Equal(missing))
	})

	It("should convert stored values when the data type changes", func() {
		c := mustAddColumn(ds, "A", storage.ColumnTypeData)
		mustSetInts(c, 1, 2)
		c.SetDataType(storage.DataTypeDecimal)
		Expect(c.Raw(1).Kind).To(Equal(compute.KindFloat))
		Expect(c.Raw(1).Float).To(Equal(2.0))
	})

	It("should count user edits", func() {
		c := mustAddColumn(ds, "A", storage.ColumnTypeData)
		mustSetInts(c, 1, 2, 3)
		Expect(c.ChangeCount()).To(Equal(3))
		c.ResetChangeCount()
		Expect(c.ChangeCount()).To(Equal(0))
	})

	It("should refuse duplicate names", func() {
		mustAddColumn(ds, "A", storage.ColumnTypeData)
		_, err := ds.AddColumn("A", storage.ColumnTypeData)
		Expect(err).To(HaveOccurred())
		appErr, ok := err.(*dataset.AppError)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(dataset.AlreadyExists))
	})

	It("should keep indexes in order on insert", func() {
		a := mustAddColumn(ds, "A", storage.ColumnTypeData)
		b := mustAddColumn(ds, "B", storage.ColumnTypeData)
		c, err := ds.InsertColumn(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Index()).To(Equal(0))
		Expect(c.Index()).To(Equal(1))
		Expect(b.Index()).To(Equal(2))

		got, err := ds.Column(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(b))

		_, err = ds.Column(3)
		Expect(err).To(MatchError(dataset.ErrIndexOutOfRange))
	})
})
