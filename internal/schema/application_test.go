package schema_test

import (
	"errors"
	"sync"
	"testing"

	"atfxcore/internal/schema"
	"atfxcore/internal/schema/schematest"
	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

type warnRecorder struct {
	mu    sync.Mutex
	warns []string
}

func (r *warnRecorder) Debug(string, ...any) {}
func (r *warnRecorder) Info(string, ...any)  {}
func (r *warnRecorder) Error(string, ...any) {}
func (r *warnRecorder) Warn(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, msg)
}

func TestCreateElementAutoCreatesMandatoryAttributes(t *testing.T) {
	s := schema.NewApplicationSchema(schematest.Base(t))
	e, err := s.CreateElement(schema.AoMeasurement, "Measurement")
	if err != nil {
		t.Fatalf("CreateElement: %v", err)
	}
	if e.ID() != 1 {
		t.Fatalf("first element id = %d, want 1", e.ID())
	}
	id, err := s.AttributeByBaseName(e.ID(), "id")
	if err != nil {
		t.Fatalf("id attribute missing: %v", err)
	}
	if id.Name() != "id" || !id.Obligatory() || id.DataType() != value.DTLongLong {
		t.Fatalf("unexpected id attribute %+v", id)
	}
	if len(e.Attributes()) != 2 {
		t.Fatalf("expected id and name only, got %d attributes", len(e.Attributes()))
	}
	if _, err := s.CreateElement(schema.AoMeasurement, "Measurement"); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("expected duplicate name to fail, got %v", err)
	}
	if _, err := s.CreateElement("AoNothing", "X"); !errors.Is(err, odserr.ErrNotFound) {
		t.Fatalf("expected unknown base type to fail, got %v", err)
	}
}

func TestNextElementIDConcurrent(t *testing.T) {
	s := schema.NewApplicationSchema(schematest.Base(t))
	const n = 64
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- s.NextElementID()
		}()
	}
	wg.Wait()
	close(ids)
	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate element id %d", id)
		}
		seen[id] = true
	}
}

func TestCreateElementWithIDAdvancesAllocator(t *testing.T) {
	s := schema.NewApplicationSchema(schematest.Base(t))
	if _, err := s.CreateElementWithID(10, schema.AoTest, "Test"); err != nil {
		t.Fatalf("CreateElementWithID: %v", err)
	}
	e, err := s.CreateElement(schema.AoUnit, "Unit")
	if err != nil {
		t.Fatalf("CreateElement: %v", err)
	}
	if e.ID() != 11 {
		t.Fatalf("allocated id = %d, want 11", e.ID())
	}
}

func TestRebindingAutoCreatedAttributeRenames(t *testing.T) {
	s := schema.NewApplicationSchema(schematest.Base(t))
	e, _ := s.CreateElement(schema.AoTest, "Test")
	a, err := s.CreateAttribute(schema.AttributeSpec{Element: e.ID(), Name: "iname", BaseName: "name"})
	if err != nil {
		t.Fatalf("CreateAttribute: %v", err)
	}
	if len(e.Attributes()) != 2 {
		t.Fatalf("rebinding must not add an attribute")
	}
	if _, err := s.Attribute(e.ID(), "name"); err != nil {
		t.Fatalf("base name lookup must still resolve: %v", err)
	}
	got, err := s.Attribute(e.ID(), "iname")
	if err != nil || got != a || got.BaseName() != "name" {
		t.Fatalf("renamed attribute lookup = %v %v", got, err)
	}
	if _, err := s.CreateAttribute(schema.AttributeSpec{Element: e.ID(), Name: "other", BaseName: "name"}); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("second binding must fail, got %v", err)
	}
}

func TestCreateAttributeEnforcesBaseDataType(t *testing.T) {
	s := schema.NewApplicationSchema(schematest.Base(t))
	e, _ := s.CreateElement(schema.AoSubmatrix, "Submatrix")
	_, err := s.CreateAttribute(schema.AttributeSpec{Element: e.ID(), Name: "rows", BaseName: "number_of_rows", DataType: value.DTDouble})
	if !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("expected BadParameter, got %v", err)
	}
	free, err := s.CreateAttribute(schema.AttributeSpec{Element: e.ID(), Name: "comment", DataType: value.DTString})
	if err != nil || free.BaseName() != "" {
		t.Fatalf("free attribute: %v %v", free, err)
	}
	if _, err := s.CreateAttribute(schema.AttributeSpec{Element: e.ID(), Name: "untyped"}); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("free attribute without type must fail, got %v", err)
	}
}

func TestExtendedCompatibilityWidensID(t *testing.T) {
	legacy, err := schematest.NewBase(schematest.LegacyVersion)
	if err != nil {
		t.Fatalf("legacy base: %v", err)
	}
	strict := schema.NewApplicationSchema(legacy)
	e, _ := strict.CreateElement(schema.AoTest, "Test")
	if _, err := strict.CreateAttribute(schema.AttributeSpec{Element: e.ID(), Name: "id", BaseName: "id", DataType: value.DTLongLong}); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("strict mode must reject widening, got %v", err)
	}
	relaxed := schema.NewApplicationSchema(legacy, schema.WithExtendedCompatibility(true))
	e, _ = relaxed.CreateElement(schema.AoTest, "Test")
	a, err := relaxed.CreateAttribute(schema.AttributeSpec{Element: e.ID(), Name: "id", BaseName: "id", DataType: value.DTLongLong})
	if err != nil || a.DataType() != value.DTLongLong {
		t.Fatalf("extended compatibility must widen id: %v %v", a, err)
	}
}

func TestUpdateAttributeRejectsLoosening(t *testing.T) {
	s := schema.NewApplicationSchema(schematest.Base(t))
	e, _ := s.CreateElement(schema.AoTest, "Test")
	no := false
	if err := s.UpdateAttribute(e.ID(), "id", schema.AttributeUpdate{Obligatory: &no}); !errors.Is(err, odserr.ErrBadOperation) {
		t.Fatalf("expected BadOperation for obligatory, got %v", err)
	}
	if err := s.UpdateAttribute(e.ID(), "id", schema.AttributeUpdate{Unique: &no}); !errors.Is(err, odserr.ErrBadOperation) {
		t.Fatalf("expected BadOperation for unique, got %v", err)
	}
	n := 80
	if err := s.UpdateAttribute(e.ID(), "name", schema.AttributeUpdate{Length: &n}); err != nil {
		t.Fatalf("length update: %v", err)
	}
	a, _ := s.Attribute(e.ID(), "name")
	if a.Length() != 80 {
		t.Fatalf("length not applied")
	}
	if _, err := s.RemoveAttribute(e.ID(), "name"); !errors.Is(err, odserr.ErrBadOperation) {
		t.Fatalf("expected BadOperation removing obligatory attribute, got %v", err)
	}
}

func TestRenameAttributeKeepsIndicesInSync(t *testing.T) {
	s := schema.NewApplicationSchema(schematest.Base(t))
	e, _ := s.CreateElement(schema.AoTest, "Test")
	if _, err := s.CreateAttribute(schema.AttributeSpec{Element: e.ID(), Name: "a", DataType: value.DTLong}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.RenameAttribute(e.ID(), "a", "b"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := s.Attribute(e.ID(), "a"); !errors.Is(err, odserr.ErrNotFound) {
		t.Fatalf("old name must be gone, got %v", err)
	}
	b, err := s.Attribute(e.ID(), "b")
	if err != nil {
		t.Fatalf("new name: %v", err)
	}
	byNo, _ := s.AttributeByNumber(e.ID(), b.Number())
	if byNo != b {
		t.Fatalf("number index out of sync")
	}
	if err := s.RenameAttribute(e.ID(), "b", "name"); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("expected clash, got %v", err)
	}
	removed, err := s.RemoveAttribute(e.ID(), "b")
	if err != nil || removed != b {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.AttributeByNumber(e.ID(), b.Number()); !errors.Is(err, odserr.ErrNotFound) {
		t.Fatalf("removed attribute still indexed")
	}
}

func TestApplicationEnumerations(t *testing.T) {
	s := schema.NewApplicationSchema(schematest.Base(t))
	enum, err := s.CreateEnumeration("color")
	if err != nil {
		t.Fatalf("CreateEnumeration: %v", err)
	}
	if err := enum.AddItem(0, "red"); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := enum.RenameItem(0, "crimson"); err != nil {
		t.Fatalf("RenameItem: %v", err)
	}
	if n, _ := enum.ItemName(0); n != "crimson" {
		t.Fatalf("rename not applied")
	}
	if _, err := s.CreateEnumeration("seq_rep_enum"); !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("base enumeration names are reserved, got %v", err)
	}
	e, _ := s.CreateElement(schema.AoTest, "Test")
	if _, err := s.CreateAttribute(schema.AttributeSpec{Element: e.ID(), Name: "c", DataType: value.DTEnum, Enumeration: "color"}); err != nil {
		t.Fatalf("enum attribute: %v", err)
	}
	if err := s.RemoveEnumeration("color"); !errors.Is(err, odserr.ErrBadOperation) {
		t.Fatalf("in-use enumeration must not be removed, got %v", err)
	}
	if err := s.RenameEnumeration("color", "colour"); err != nil {
		t.Fatalf("RenameEnumeration: %v", err)
	}
	if got, err := s.Enumeration("colour"); err != nil || got != enum {
		t.Fatalf("renamed enumeration lookup: %v", err)
	}
	if _, err := s.RemoveAttribute(e.ID(), "c"); err != nil {
		t.Fatalf("RemoveAttribute: %v", err)
	}
	if err := s.RemoveEnumeration("colour"); err != nil {
		t.Fatalf("RemoveEnumeration: %v", err)
	}
	if err := s.RemoveEnumeration("datatype_enum"); !errors.Is(err, odserr.ErrBadOperation) {
		t.Fatalf("base enumeration removal must fail, got %v", err)
	}
}

func TestRenameAndRemoveElement(t *testing.T) {
	m := schematest.MeasurementModel(t, schematest.Base(t))
	s := m.Schema
	if err := s.RenameElement(m.Unit, "Units"); err != nil {
		t.Fatalf("RenameElement: %v", err)
	}
	if _, err := s.ElementByName("Unit"); !errors.Is(err, odserr.ErrNotFound) {
		t.Fatalf("old element name must be gone")
	}
	if got := s.ElementsByBaseType(schema.AoUnit); len(got) != 1 || got[0].Name() != "Units" {
		t.Fatalf("unexpected elements by base type %v", got)
	}
	if err := s.RemoveElement(m.Unit); err != nil {
		t.Fatalf("RemoveElement: %v", err)
	}
	if _, err := s.Relation(m.Quantity, "unit"); !errors.Is(err, odserr.ErrNotFound) {
		t.Fatalf("relations pointing at a removed element must be removed, got %v", err)
	}
}
