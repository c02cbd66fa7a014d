package dataset_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/vogtb/go-datasheet/packages/compute"
	"github.com/vogtb/go-datasheet/packages/dataset"
	"github.com/vogtb/go-datasheet/packages/storage"
)

var _ = Describe("Formulas", func() {
	var (
		ds *dataset.Dataset
		y  *dataset.Column
	)

	BeforeEach(func() {
		ds = newIntDataset(3, map[string][]int64{"Y": {1, 2, 3}})
		var ok bool
		y, ok = ds.ColumnByName("Y")
		Expect(ok).To(BeTrue())
	})

	It("should compute X = Y + 1 and follow edits of Y", func() {
		x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
		x.SetFormula("Y + 1")
		Expect(x.FormulaStatus()).To(Equal(dataset.FormulaOK))
		Expect(x.NeedsRecalc()).To(BeTrue())

		Expect(x.Recalc()).To(Succeed())
		Expect(ints(x)).To(Equal([]int64{2, 3, 4}))
		Expect(x.NeedsRecalc()).To(BeFalse())

		Expect(y.SetValue(0, compute.Int(10))).To(Succeed())
		Expect(x.NeedsRecalc()).To(BeTrue())

		Expect(x.Recalc()).To(Succeed())
		Expect(ints(x)).To(Equal([]int64{11, 3, 4}))
	})

	It("should normalize whitespace and ignore unchanged text", func() {
		x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
		x.SetFormula("  Y   +\t1 ")
		Expect(x.Formula()).To(Equal("Y + 1"))
		Expect(x.Recalc()).To(Succeed())

		x.SetFormula("Y + 1")
		Expect(x.NeedsRecalc()).To(BeFalse())
	})

	It("should leave an up to date column alone", func() {
		x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
		x.SetFormula("Y * 2")
		Expect(x.Recalc()).To(Succeed())
		before := ints(x)

		Expect(x.Recalc()).To(Succeed())
		Expect(ints(x)).To(Equal(before))
		Expect(x.NeedsRecalc()).To(BeFalse())
		Expect(x.ChangeCount()).To(Equal(0))
	})

	It("should mark everything downstream of an edit", func() {
		b := mustAddColumn(ds, "B", storage.ColumnTypeComputed)
		b.SetFormula("Y * 2")
		c := mustAddColumn(ds, "C", storage.ColumnTypeComputed)
		c.SetFormula("B + 1")
		Expect(ds.RecalcAll()).To(Succeed())
		Expect(b.NeedsRecalc()).To(BeFalse())
		Expect(c.NeedsRecalc()).To(BeFalse())

		Expect(y.SetValue(2, compute.Int(5))).To(Succeed())
		Expect(b.NeedsRecalc()).To(BeTrue())
		Expect(c.NeedsRecalc()).To(BeTrue())
	})

	It("should recalculate stale inputs first", func() {
		b := mustAddColumn(ds, "B", storage.ColumnTypeComputed)
		b.SetFormula("Y * 2")
		c := mustAddColumn(ds, "C", storage.ColumnTypeComputed)
		c.SetFormula("B + 1")
		Expect(ds.RecalcAll()).To(Succeed())

		Expect(y.SetValue(0, compute.Int(100))).To(Succeed())
		Expect(c.Recalc()).To(Succeed())
		Expect(b.NeedsRecalc()).To(BeFalse())
		Expect(ints(b)).To(Equal([]int64{200, 4, 6}))
		Expect(ints(c)).To(Equal([]int64{201, 5, 7}))
	})

	It("should recalculate a single row or a range", func() {
		x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
		x.SetFormula("Y + 1")
		Expect(x.Recalc(1)).To(Succeed())
		Expect(ints(x)).To(Equal([]int64{missing, 3, missing}))

		x.SetFormula("Y + 2")
		Expect(x.Recalc(1, 3)).To(Succeed())
		Expect(ints(x)).To(Equal([]int64{missing, 4, 5}))
	})

	It("should resolve dependencies and dependents", func() {
		b := mustAddColumn(ds, "B", storage.ColumnTypeComputed)
		b.SetFormula("Y * 2")
		c := mustAddColumn(ds, "C", storage.ColumnTypeComputed)
		c.SetFormula("B + Y")

		Expect(c.Dependencies()).To(ConsistOf(b, y))
		Expect(b.Dependencies()).To(ConsistOf(y))
		Expect(y.Dependencies()).To(BeEmpty())

		Expect(y.Dependents()).To(ConsistOf(b, c))
		Expect(b.Dependents()).To(ConsistOf(c))
		Expect(c.Dependents()).To(BeEmpty())

		Expect(y.HasDeps()).To(BeTrue())
		Expect(c.HasDeps()).To(BeTrue())
	})

	It("should order columns after the columns they read", func() {
		c := mustAddColumn(ds, "C", storage.ColumnTypeComputed)
		b := mustAddColumn(ds, "B", storage.ColumnTypeComputed)
		b.SetFormula("Y * 2")
		c.SetFormula("B + 1")

		order, err := ds.CalculationOrder()
		Expect(err).NotTo(HaveOccurred())
		position := map[*dataset.Column]int{}
		for i, col := range order {
			position[col] = i
		}
		Expect(position[y]).To(BeNumerically("<", position[b]))
		Expect(position[b]).To(BeNumerically("<", position[c]))
	})

	Context("that cannot compile", func() {
		It("should reject a self reference", func() {
			x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
			x.SetFormula("X + 1")
			Expect(x.FormulaStatus()).To(Equal(dataset.FormulaError))
			Expect(x.FormulaMessage()).To(Equal("Circular reference detected"))
			Expect(x.FormulaError().Kind).To(Equal(dataset.CompileCircular))
		})

		It("should reject a transitive cycle and keep the old values", func() {
			b := mustAddColumn(ds, "B", storage.ColumnTypeComputed)
			b.SetFormula("Y + 1")
			c := mustAddColumn(ds, "C", storage.ColumnTypeComputed)
			c.SetFormula("B + 1")
			Expect(ds.RecalcAll()).To(Succeed())

			b.SetFormula("C + 1")
			Expect(b.FormulaStatus()).To(Equal(dataset.FormulaError))
			Expect(b.FormulaMessage()).To(Equal("Circular reference detected"))
			Expect(b.NeedsRecalc()).To(BeFalse())
			Expect(ints(b)).To(Equal([]int64{2, 3, 4}))
		})

		DescribeTable("should classify the failure",
			func(formula string, kind dataset.CompileErrorKind, message string) {
				x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
				x.SetFormula(formula)
				Expect(x.FormulaStatus()).To(Equal(dataset.FormulaError))
				Expect(x.FormulaError().Kind).To(Equal(kind))
				Expect(x.FormulaMessage()).To(Equal(message))
			},
			Entry("syntax", "Y +", dataset.CompileSyntax, "The formula is mis-specified"),
			Entry("unbalanced", "(Y + 1", dataset.CompileSyntax, "The formula is mis-specified"),
			Entry("unknown column", "Nope + 1", dataset.CompileSemantic, "Column 'Nope' does not exist in the dataset"),
			Entry("unknown function", "FOO(Y)", dataset.CompileSemantic, "'FOO' is not a known function"),
			Entry("text arithmetic", "'a' + 1", dataset.CompileSemantic, "Cannot apply '+' to text"),
			Entry("arity", "ABS(Y, 1)", dataset.CompileSemantic, "ABS() takes 1 argument(s) (2 given)"),
		)

		It("should keep the previous values when a formula is broken", func() {
			x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
			x.SetFormula("Y + 1")
			Expect(x.Recalc()).To(Succeed())

			x.SetFormula("Y +")
			Expect(x.FormulaStatus()).To(Equal(dataset.FormulaError))
			Expect(x.NeedsRecalc()).To(BeFalse())
			Expect(ints(x)).To(Equal([]int64{2, 3, 4}))
		})

		It("should compile again once the named column exists", func() {
			x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
			x.SetFormula("Z * 2")
			Expect(x.FormulaStatus()).To(Equal(dataset.FormulaError))

			z := mustAddColumn(ds, "Z", storage.ColumnTypeData)
			mustSetInts(z, 4, 5, 6)
			x.Recompile()
			Expect(x.FormulaStatus()).To(Equal(dataset.FormulaOK))
			Expect(x.Recalc()).To(Succeed())
			Expect(ints(x)).To(Equal([]int64{8, 10, 12}))
		})
	})

	Context("with types", func() {
		It("should materialize decimals, missing on failure", func() {
			d := mustAddColumn(ds, "D", storage.ColumnTypeComputed)
			d.SetFormula("Y / (Y - 2)")
			Expect(d.DataType()).To(Equal(storage.DataTypeDecimal))
			Expect(d.Recalc()).To(Succeed())

			got := floats(d)
			Expect(got[0]).To(BeNumerically("~", -1.0))
			Expect(math.IsNaN(got[1])).To(BeTrue())
			Expect(got[2]).To(BeNumerically("~", 3.0))
			for row := range got {
				Expect(d.Raw(row).Kind).To(Equal(compute.KindFloat))
			}
		})

		It("should store integer overflow as missing", func() {
			Expect(y.SetValue(0, compute.Int(65536))).To(Succeed())
			x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
			x.SetFormula("Y * Y * Y * Y")
			Expect(x.DataType()).To(Equal(storage.DataTypeInteger))
			Expect(x.Recalc()).To(Succeed())
			Expect(ints(x)).To(Equal([]int64{missing, 16, 81}))
			Expect(x.Value(0).IsMissing()).To(BeTrue())
		})

		It("should derive decimal places", func() {
			d := mustAddColumn(ds, "D", storage.ColumnTypeComputed)
			d.SetFormula("Y / 4")
			Expect(d.Recalc()).To(Succeed())
			Expect(d.DPS()).To(Equal(2))
		})

		It("should materialize text", func() {
			t := mustAddColumn(ds, "T", storage.ColumnTypeComputed)
			t.SetFormula("TEXT(Y * 10)")
			Expect(t.DataType()).To(Equal(storage.DataTypeText))
			Expect(t.Recalc()).To(Succeed())
			Expect(t.Raw(2).Text).To(Equal("30"))
		})

		It("should label logical results", func() {
			b := mustAddColumn(ds, "B", storage.ColumnTypeComputed)
			b.SetFormula("Y > 1")
			Expect(b.Recalc()).To(Succeed())
			Expect(b.MeasureType()).To(Equal(storage.MeasureTypeNominal))
			Expect(b.HasLevels()).To(BeTrue())
			Expect(b.Value(0).Label).To(Equal("false"))
			Expect(b.Value(2).Label).To(Equal("true"))
		})

		It("should write missing when there is no formula", func() {
			x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
			Expect(x.FormulaStatus()).To(Equal(dataset.FormulaEmpty))
			Expect(x.Recalc()).To(Succeed())
			Expect(ints(x)).To(Equal([]int64{missing, missing, missing}))
		})
	})

	Context("when columns change", func() {
		It("should keep reading a renamed column", func() {
			x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
			x.SetFormula("Y + 1")
			y.SetName("W")
			Expect(y.SetValue(1, compute.Int(7))).To(Succeed())
			Expect(x.Recalc()).To(Succeed())
			Expect(ints(x)).To(Equal([]int64{2, 8, 4}))
		})

		It("should put readers of a deleted column in error", func() {
			x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
			x.SetFormula("Y + 1")
			Expect(x.Recalc()).To(Succeed())

			Expect(ds.DeleteColumn(y.ID())).To(Succeed())
			Expect(x.FormulaStatus()).To(Equal(dataset.FormulaError))
			Expect(x.FormulaMessage()).To(Equal("Column 'Y' does not exist in the dataset"))
			Expect(x.NeedsRecalc()).To(BeTrue())
			Expect(x.Recalc()).To(Succeed())
			Expect(ints(x)).To(Equal([]int64{missing, missing, missing}))

			Expect(ds.DeleteColumn(y.ID())).To(MatchError(dataset.ErrNoSuchColumn))
		})

		It("should detach a column prepared for deletion", func() {
			x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
			x.SetFormula("Y + 1")
			Expect(y.Dependents()).To(ConsistOf(x))

			x.PrepForDeletion()
			Expect(y.Dependents()).To(BeEmpty())
			Expect(y.HasDeps()).To(BeFalse())
		})

		It("should mark formulas stale when rows are added", func() {
			x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
			x.SetFormula("Y + 1")
			Expect(ds.RecalcAll()).To(Succeed())

			ds.SetRowCount(4)
			Expect(x.NeedsRecalc()).To(BeTrue())
			Expect(ds.RecalcAll()).To(Succeed())
			Expect(ints(x)).To(Equal([]int64{2, 3, 4, missing}))
		})
	})
})

var _ = Describe("Filters", func() {
	var (
		ds *dataset.Dataset
		y  *dataset.Column
	)

	BeforeEach(func() {
		ds = newIntDataset(4, map[string][]int64{"Y": {1, 2, 3, 4}})
		y, _ = ds.ColumnByName("Y")
	})

	addFilter := func(name string, group int, formula string) *dataset.Column {
		f := mustAddColumn(ds, name, storage.ColumnTypeFilter)
		f.SetFilterNo(group)
		f.SetFormula(formula)
		return f
	}

	It("should pass every row when unformulated", func() {
		f := mustAddColumn(ds, "F", storage.ColumnTypeFilter)
		Expect(f.FormulaStatus()).To(Equal(dataset.FormulaEmpty))
		Expect(f.NeedsRecalc()).To(BeTrue())
		Expect(f.Recalc()).To(Succeed())
		Expect(ints(f)).To(Equal([]int64{1, 1, 1, 1}))
		Expect(ds.IsRowFiltered(0)).To(BeFalse())
	})

	It("should store 0 and 1, counting missing as 0", func() {
		Expect(y.SetValue(3, compute.MissingInt())).To(Succeed())
		f := addFilter("F", 0, "Y > 2")
		Expect(f.DataType()).To(Equal(storage.DataTypeInteger))
		Expect(f.MeasureType()).To(Equal(storage.MeasureTypeNominal))
		Expect(f.Recalc()).To(Succeed())
		Expect(ints(f)).To(Equal([]int64{0, 0, 1, 0}))
		Expect(ds.IsRowFiltered(0)).To(BeTrue())
		Expect(ds.IsRowFiltered(2)).To(BeFalse())
	})

	It("should exclude rows an earlier group removed", func() {
		f0 := addFilter("F0", 0, "Y > 1")
		f1 := addFilter("F1", 1, "Y < 4")
		Expect(ds.RecalcAll()).To(Succeed())

		Expect(ints(f0)).To(Equal([]int64{0, 1, 1, 1}))
		Expect(f1.FValue(0, false).Excluded).To(BeTrue())
		Expect(f1.Raw(0).Int).To(Equal(int64(storage.FilteredOut)))
		Expect(ints(f1)[1:]).To(Equal([]int64{1, 1, 0}))
		Expect(f1.Dependencies()).To(ContainElement(f0))

		By("switching the earlier group off")
		f0.SetActive(false)
		Expect(f1.NeedsRecalc()).To(BeTrue())
		Expect(ds.RecalcAll()).To(Succeed())
		Expect(ints(f1)).To(Equal([]int64{1, 1, 1, 0}))
		Expect(ds.IsRowFiltered(0)).To(BeFalse())
		Expect(ds.IsRowFiltered(3)).To(BeTrue())
	})

	It("should guard a compiled filter moved into a later group", func() {
		f0 := addFilter("F0", 0, "Y > 1")
		f1 := mustAddColumn(ds, "F1", storage.ColumnTypeFilter)
		f1.SetFormula("Y < 4")
		Expect(f1.Dependencies()).NotTo(ContainElement(f0))

		f1.SetFilterNo(1)
		Expect(f1.FormulaStatus()).To(Equal(dataset.FormulaOK))
		Expect(f1.Dependencies()).To(ContainElement(f0))
		Expect(ds.RecalcAll()).To(Succeed())
		Expect(f1.FValue(0, false).Excluded).To(BeTrue())
		Expect(ints(f1)[1:]).To(Equal([]int64{1, 1, 0}))

		By("moving it back into the first group")
		f1.SetFilterNo(0)
		Expect(f1.Dependencies()).NotTo(ContainElement(f0))
		Expect(ds.RecalcAll()).To(Succeed())
		Expect(ints(f1)).To(Equal([]int64{1, 1, 1, 0}))
	})

	It("should pass on exclusions through an empty filter moved into a later group", func() {
		addFilter("F0", 0, "Y > 2")
		f1 := mustAddColumn(ds, "F1", storage.ColumnTypeFilter)
		f1.SetFilterNo(1)
		Expect(f1.FormulaStatus()).To(Equal(dataset.FormulaEmpty))
		Expect(ds.RecalcAll()).To(Succeed())
		Expect(f1.FValue(0, false).Excluded).To(BeTrue())
		Expect(f1.FValue(1, false).Excluded).To(BeTrue())
		Expect(ints(f1)[2:]).To(Equal([]int64{1, 1}))
	})

	It("should skip groups whose members are all inactive", func() {
		f0 := addFilter("F0", 0, "Y > 1")
		f1 := addFilter("F1", 1, "Y > 2")
		f2 := addFilter("F2", 2, "Y < 10")
		f1.SetActive(false)
		Expect(ds.RecalcAll()).To(Succeed())

		Expect(f2.Dependencies()).To(ContainElement(f0))
		Expect(f2.Dependencies()).NotTo(ContainElement(f1))
		Expect(f2.FValue(0, false).Excluded).To(BeTrue())
		Expect(ints(f2)[1:]).To(Equal([]int64{1, 1, 1}))
	})

	It("should restrict aggregates in a filter to rows earlier groups kept", func() {
		addFilter("F0", 0, "Y > 1")
		f1 := addFilter("F1", 1, "Y > VMEAN(Y)")
		Expect(ds.RecalcAll()).To(Succeed())
		Expect(f1.FValue(0, false).Excluded).To(BeTrue())
		Expect(ints(f1)[1:]).To(Equal([]int64{0, 0, 1}))
	})

	It("should blank aggregates of computed columns on filtered rows", func() {
		f0 := addFilter("F0", 0, "Y > 2")
		z := mustAddColumn(ds, "Z", storage.ColumnTypeComputed)
		z.SetFormula("VMEAN(Y)")
		Expect(ds.RecalcAll()).To(Succeed())

		got := floats(z)
		Expect(math.IsNaN(got[0])).To(BeTrue())
		Expect(math.IsNaN(got[1])).To(BeTrue())
		Expect(got[2]).To(BeNumerically("~", 3.5))
		Expect(got[3]).To(BeNumerically("~", 3.5))

		By("switching the filter off")
		f0.SetActive(false)
		Expect(z.NeedsRecalc()).To(BeTrue())
		Expect(ds.RecalcAll()).To(Succeed())
		Expect(floats(z)).To(HaveEach(BeNumerically("~", 2.5)))
	})

	It("should leave row formulas of computed columns alone", func() {
		addFilter("F0", 0, "Y > 2")
		x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
		x.SetFormula("Y + 1")
		Expect(ds.RecalcAll()).To(Succeed())
		Expect(ints(x)).To(Equal([]int64{2, 3, 4, 5}))
	})

	It("should recompile later filters when a filter is deleted", func() {
		f0 := addFilter("F0", 0, "Y > 1")
		f1 := addFilter("F1", 1, "Y < 4")
		Expect(ds.RecalcAll()).To(Succeed())

		Expect(ds.DeleteColumn(f0.ID())).To(Succeed())
		Expect(f1.FormulaStatus()).To(Equal(dataset.FormulaOK))
		Expect(ds.RecalcAll()).To(Succeed())
		Expect(ints(f1)).To(Equal([]int64{1, 1, 1, 0}))
	})
})

var _ = Describe("DotGraph", func() {
	It("should render columns and their edges", func() {
		ds := newIntDataset(2, map[string][]int64{"Y": {1, 2}})
		x := mustAddColumn(ds, "X", storage.ColumnTypeComputed)
		x.SetFormula("Y + 1")
		bad := mustAddColumn(ds, "Bad", storage.ColumnTypeComputed)
		bad.SetFormula("Y +")

		out := ds.DotGraph().String()
		Expect(out).To(ContainSubstring("digraph"))
		Expect(out).To(ContainSubstring("X = Y + 1"))
		Expect(out).To(ContainSubstring("->"))
		Expect(out).To(ContainSubstring("The formula is mis-specified"))
	})
})
