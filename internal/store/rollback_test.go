package store_test

import (
	"context"
	"errors"
	"testing"

	"atfxcore/internal/schema"
	"atfxcore/internal/store"
	"atfxcore/pkg/odserr"
	"atfxcore/pkg/value"
)

func bytestrs(items ...string) value.Value {
	out := make([][]byte, len(items))
	for i, s := range items {
		out[i] = []byte(s)
	}
	return value.Must(value.DSByteStr, out)
}

func TestCanceledCreateLeavesNoInstance(t *testing.T) {
	st, m, _ := fileStore(t, store.Context{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.CreateInstance(ctx, m.LocalColumn, []value.NamedValue{
		named("col"),
		value.Named("values", value.Must(value.DSDouble, []float64{1, 2, 3})),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if ids := st.InstanceIDs(m.LocalColumn); len(ids) != 0 {
		t.Fatalf("rejected create left columns %v", ids)
	}
	if ids := st.InstanceIDs(m.ExternalComponent); len(ids) != 0 {
		t.Fatalf("rejected create left components %v", ids)
	}
	mustCreate(t, st, m.LocalColumn, named("col"))
}

// limitComponents caps the components a column may link so that the third
// component of a write fails to connect.
func limitComponents(t *testing.T, st *store.Store, m modelIDs) {
	t.Helper()
	if err := st.Schema().SetRange(m.LocalColumn, "external_component", schema.Range{Max: schema.Limit(2)}); err != nil {
		t.Fatalf("set range: %v", err)
	}
}

func TestFailedComponentWriteRollsBackCreate(t *testing.T) {
	st, m, _ := fileStore(t, store.Context{MaxSegmentSize: 8})
	limitComponents(t, st, m)

	_, err := st.CreateInstance(context.Background(), m.LocalColumn, []value.NamedValue{
		named("col"),
		value.Named("values", bytestrs("aaaa", "bbbb", "cccc")),
	})
	if !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("got %v, want BadParameter from the third component", err)
	}
	if ids := st.InstanceIDs(m.LocalColumn); len(ids) != 0 {
		t.Fatalf("column left behind: %v", ids)
	}
	if ids := st.InstanceIDs(m.ExternalComponent); len(ids) != 0 {
		t.Fatalf("components left behind: %v", ids)
	}
}

func TestFailedRewriteKeepsPreviousComponents(t *testing.T) {
	st, m, _ := fileStore(t, store.Context{MaxSegmentSize: 8})
	limitComponents(t, st, m)
	ctx := context.Background()
	old := bytestrs("aaaa")
	_, col := column(t, st, m, 1, value.Named("values", old))
	before, err := st.Related(m.LocalColumn, col, "external_component")
	if err != nil || len(before) != 1 {
		t.Fatalf("components = %v %v", before, err)
	}

	// New components link before the old ones go, so the second one overflows.
	err = st.SetValue(ctx, m.LocalColumn, col, value.Named("values", bytestrs("xxxx", "yyyy")))
	if !errors.Is(err, odserr.ErrBadParameter) {
		t.Fatalf("got %v, want BadParameter", err)
	}
	after, err := st.Related(m.LocalColumn, col, "external_component")
	if err != nil || !sameIDs(after, before) {
		t.Fatalf("components changed from %v to %v (%v)", before, after, err)
	}
	if ids := st.InstanceIDs(m.ExternalComponent); !sameIDs(ids, before) {
		t.Fatalf("component instances = %v, want %v", ids, before)
	}
	if got := mustValue(t, st, m.LocalColumn, col, "values"); !value.Equal(got, old) {
		t.Fatalf("values = %v, want %v", got, old)
	}

	repl := bytestrs("qqqq")
	if err := st.SetValue(ctx, m.LocalColumn, col, value.Named("values", repl)); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if ids := st.InstanceIDs(m.ExternalComponent); len(ids) != 1 || ids[0] == before[0] {
		t.Fatalf("component instances after rewrite = %v", ids)
	}
	if got := mustValue(t, st, m.LocalColumn, col, "values"); !value.Equal(got, repl) {
		t.Fatalf("values = %v", got)
	}
}

func TestCanceledRemoveElementKeepsInstances(t *testing.T) {
	st, m := newStore(t)
	mustCreate(t, st, m.Test, named("a"))
	mustCreate(t, st, m.Test, named("b"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := st.RemoveElement(ctx, m.Test); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if ids := st.InstanceIDs(m.Test); len(ids) != 2 {
		t.Fatalf("instances = %v", ids)
	}
}

func TestContextSegmentLimitReachesCodec(t *testing.T) {
	st, m, segments := fileStore(t, store.Context{MaxSegmentSize: 16})
	column(t, st, m, 3, value.Named("values", value.Must(value.DSDouble, []float64{1, 2, 3})))
	column(t, st, m, 3, value.Named("values", value.Must(value.DSDouble, []float64{4, 5, 6})))

	for _, name := range []string{"data_1.btf", "data_2.btf"} {
		info, err := segments.Stat(context.Background(), name)
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size != 24 {
			t.Fatalf("%s size = %d, want 24", name, info.Size)
		}
	}
}
