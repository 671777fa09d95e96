package registry

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/sourcekit/extmgr/internal/extension"
)

func itemKeys(items []Item) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Kind.String()+":"+it.PkgName())
	}
	return out
}

func TestBuildItems_Ordering(t *testing.T) {
	zeta := installed("zeta", 1)
	zeta.Name = "Zeta"
	alpha := installed("alpha", 1)
	alpha.Name = "alpha"
	beta := installed("beta", 1)
	beta.Name = "Beta"
	beta.HasUpdate = true

	items := buildItems(
		[]extension.Installed{zeta, alpha, beta},
		[]extension.Untrusted{{Name: "u2", PkgName: "u2"}, {Name: "U1", PkgName: "u1"}},
		[]extension.Available{available("zz", 1), available("alpha", 2), available("mm", 1)},
		map[string]extension.InstallStep{"mm": extension.StepDownloading},
	)

	want := []string{
		"installed:beta",
		"installed:alpha",
		"installed:zeta",
		"untrusted:u1",
		"untrusted:u2",
		"available:mm",
		"available:zz",
	}
	if got := itemKeys(items); !slices.Equal(got, want) {
		t.Errorf("items = %v\nwant %v", got, want)
	}
	if items[5].Step != extension.StepDownloading {
		t.Errorf("mm step = %v, want downloading", items[5].Step)
	}
	if items[0].Step != extension.StepIdle {
		t.Errorf("beta step = %v, want idle", items[0].Step)
	}
}

func TestView_Debounced(t *testing.T) {
	h := newHarness(t,
		extension.LoadSuccess{Extension: installed("a", 5)},
		extension.LoadUntrusted{Extension: extension.Untrusted{Name: "b", PkgName: "b"}},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	view := h.reg.View(ctx, 10*time.Millisecond)

	h.catalog.set([]extension.Available{available("a", 7), available("e", 1)}, nil)
	if err := h.reg.FindAvailableExtensions(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{"installed:a", "untrusted:b", "available:e"}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case items, ok := <-view:
			if !ok {
				t.Fatal("view closed")
			}
			if slices.Equal(itemKeys(items), want) && items[0].Installed.HasUpdate {
				return
			}
		case <-deadline:
			t.Fatalf("view never settled on %v", want)
		}
	}
}

func TestView_ClosesWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	view := h.reg.View(ctx, 0)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-view:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("view not closed after cancel")
		}
	}
}
