package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/sourcekit/extmgr/internal/extension"
	"github.com/sourcekit/extmgr/internal/pkghost"
	"github.com/sourcekit/extmgr/internal/source"
)

type fakeSource struct {
	id   int64
	name string
}

func (s *fakeSource) ID() int64      { return s.id }
func (s *fakeSource) Name() string   { return s.name }
func (s *fakeSource) String() string { return fmt.Sprintf("%s(%d)", s.name, s.id) }

type fakeLoader struct {
	mu  sync.Mutex
	all []extension.LoadResult
	one map[string]extension.LoadResult
}

func (f *fakeLoader) LoadAll(context.Context) []extension.LoadResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.all)
}

func (f *fakeLoader) LoadOne(_ context.Context, pkgName string) extension.LoadResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.one[pkgName]; ok {
		return res
	}
	return extension.LoadFailure{PkgName: pkgName, Err: extension.ErrNotExtension}
}

func (f *fakeLoader) set(pkgName string, res extension.LoadResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.one == nil {
		f.one = make(map[string]extension.LoadResult)
	}
	f.one[pkgName] = res
}

type fakeCatalog struct {
	mu   sync.Mutex
	list []extension.Available
	err  error
}

func (f *fakeCatalog) FetchCatalog(context.Context) ([]extension.Available, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.list), nil
}

func (f *fakeCatalog) BaseURL() string { return "https://catalog.test/repo" }

func (f *fakeCatalog) set(list []extension.Available, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list, f.err = list, err
}

type installCall struct {
	pkgName, url, sha256 string
	steps                chan extension.InstallStep
}

type fakeInstaller struct {
	mu          sync.Mutex
	calls       []installCall
	completed   []string
	uninstalled []string
	lastErr     error
	uninstErr   error
}

func (f *fakeInstaller) InstallOrUpdate(_ context.Context, pkgName, _, url, sha256 string) <-chan extension.InstallStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan extension.InstallStep, 8)
	f.calls = append(f.calls, installCall{pkgName: pkgName, url: url, sha256: sha256, steps: ch})
	return ch
}

func (f *fakeInstaller) Complete(pkgName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, pkgName)
}

func (f *fakeInstaller) LastError(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *fakeInstaller) Uninstall(_ context.Context, pkgName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uninstErr != nil {
		return f.uninstErr
	}
	f.uninstalled = append(f.uninstalled, pkgName)
	return nil
}

func (f *fakeInstaller) wasCompleted(pkgName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.completed, pkgName)
}

type fakeTrust struct {
	mu    sync.Mutex
	added []string
}

func (f *fakeTrust) Add(hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, hash)
	return nil
}

type fakeEvents struct {
	ch chan pkghost.Event
}

func (f *fakeEvents) Subscribe(context.Context) <-chan pkghost.Event { return f.ch }

type harness struct {
	reg       *Registry
	loader    *fakeLoader
	catalog   *fakeCatalog
	installer *fakeInstaller
	trust     *fakeTrust
	events    *fakeEvents
	dir       *source.Directory
}

func newHarness(t *testing.T, initial ...extension.LoadResult) *harness {
	t.Helper()
	h := &harness{
		loader:    &fakeLoader{all: initial},
		catalog:   &fakeCatalog{},
		installer: &fakeInstaller{},
		trust:     &fakeTrust{},
		events:    &fakeEvents{ch: make(chan pkghost.Event, 8)},
		dir:       source.NewDirectory(),
	}
	h.reg = New(Deps{
		Loader:    h.loader,
		Catalog:   h.catalog,
		Installer: h.installer,
		Trust:     h.trust,
		Events:    h.events,
		Sources:   h.dir,
	}, logr.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := h.reg.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return h
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.reg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	assertDisjoint(t, snap)
	return snap
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func assertDisjoint(t *testing.T, snap Snapshot) {
	t.Helper()
	seen := make(map[string]string)
	mark := func(pkgName, list string) {
		if prev, ok := seen[pkgName]; ok {
			t.Errorf("%s is in both %s and %s", pkgName, prev, list)
		}
		seen[pkgName] = list
	}
	for _, ext := range snap.Installed {
		mark(ext.PkgName, "installed")
	}
	for _, ext := range snap.Untrusted {
		mark(ext.PkgName, "untrusted")
	}
	for _, ext := range snap.Available {
		mark(ext.PkgName, "available")
	}
}

func installed(pkgName string, code int, sources ...source.Source) extension.Installed {
	return extension.Installed{
		Name:        pkgName,
		PkgName:     pkgName,
		VersionName: fmt.Sprintf("1.%d", code),
		VersionCode: code,
		Sources:     sources,
	}
}

func available(pkgName string, code int) extension.Available {
	return extension.Available{
		Name:        pkgName,
		PkgName:     pkgName,
		VersionName: fmt.Sprintf("1.%d", code),
		VersionCode: code,
		APKName:     pkgName + ".zip",
	}
}

func installedNames(snap Snapshot) []string {
	var out []string
	for _, ext := range snap.Installed {
		out = append(out, ext.PkgName)
	}
	return out
}

func TestStart_PopulatesLists(t *testing.T) {
	src1 := &fakeSource{id: 1, name: "one"}
	src2 := &fakeSource{id: 2, name: "two"}
	h := newHarness(t,
		extension.LoadSuccess{Extension: installed("a", 1, src1, src2)},
		extension.LoadUntrusted{Extension: extension.Untrusted{PkgName: "b", SignatureHash: "h1"}},
		extension.LoadFailure{PkgName: "c", Err: extension.ErrMalformedExtension},
		extension.LoadFailure{PkgName: "d", Err: extension.ErrNotExtension},
	)

	snap := h.snapshot(t)
	if got := installedNames(snap); !slices.Equal(got, []string{"a"}) {
		t.Errorf("installed = %v, want [a]", got)
	}
	if len(snap.Untrusted) != 1 || snap.Untrusted[0].PkgName != "b" {
		t.Errorf("untrusted = %+v, want [b]", snap.Untrusted)
	}
	for _, id := range []int64{1, 2} {
		if _, ok := h.dir.Get(id); !ok {
			t.Errorf("source %d not registered", id)
		}
	}
	if n := len(h.dir.List()); n != 2 {
		t.Errorf("directory holds %d sources, want 2", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	select {
	case list := <-h.reg.Installed(ctx):
		if len(list) != 1 {
			t.Errorf("installed stream = %+v", list)
		}
	case <-time.After(time.Second):
		t.Fatal("installed stream did not replay")
	}
}

func TestStart_Twice(t *testing.T) {
	h := newHarness(t)
	if err := h.reg.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded")
	}
}

func TestNotStarted(t *testing.T) {
	reg := New(Deps{}, logr.Discard())
	if _, err := reg.Snapshot(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Snapshot err = %v, want ErrNotStarted", err)
	}
	if err := reg.FindAvailableExtensions(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("FindAvailableExtensions err = %v, want ErrNotStarted", err)
	}
}

func TestFindAvailableExtensions_MarksUpdates(t *testing.T) {
	h := newHarness(t, extension.LoadSuccess{Extension: installed("a", 5)})
	ctx := context.Background()

	h.catalog.set([]extension.Available{available("a", 7), available("e", 1)}, nil)
	if err := h.reg.FindAvailableExtensions(ctx); err != nil {
		t.Fatalf("FindAvailableExtensions: %v", err)
	}
	snap := h.snapshot(t)
	if !snap.Installed[0].HasUpdate {
		t.Error("a@5 with a@7 in catalog has no update")
	}
	if len(snap.Available) != 1 || snap.Available[0].PkgName != "e" {
		t.Errorf("available = %+v, want [e]", snap.Available)
	}

	h.catalog.set([]extension.Available{available("a", 5)}, nil)
	if err := h.reg.FindAvailableExtensions(ctx); err != nil {
		t.Fatalf("FindAvailableExtensions: %v", err)
	}
	if h.snapshot(t).Installed[0].HasUpdate {
		t.Error("a@5 with a@5 in catalog still has update")
	}
}

func TestFindAvailableExtensions_FailureKeepsList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.catalog.set([]extension.Available{available("e", 1)}, nil)
	if err := h.reg.FindAvailableExtensions(ctx); err != nil {
		t.Fatalf("FindAvailableExtensions: %v", err)
	}

	fetchErr := fmt.Errorf("fetching: %w", extension.ErrNetworkFailure)
	h.catalog.set(nil, fetchErr)
	if err := h.reg.FindAvailableExtensions(ctx); !errors.Is(err, extension.ErrNetworkFailure) {
		t.Fatalf("err = %v, want ErrNetworkFailure", err)
	}
	if snap := h.snapshot(t); len(snap.Available) != 1 {
		t.Errorf("available = %+v, want previous list", snap.Available)
	}

	select {
	case err := <-h.reg.Errors():
		if !errors.Is(err, extension.ErrNetworkFailure) {
			t.Errorf("error event = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no error event")
	}
}

func TestHostEvents_InstallUpdateRemove(t *testing.T) {
	h := newHarness(t)
	v1 := &fakeSource{id: 10, name: "foo"}
	v2 := &fakeSource{id: 11, name: "foo"}

	h.loader.set("f", extension.LoadSuccess{Extension: installed("f", 1, v1)})
	h.events.ch <- pkghost.Event{Kind: pkghost.EventAdded, PkgName: "f"}
	waitFor(t, "f installed", func() bool {
		return slices.Equal(installedNames(h.snapshot(t)), []string{"f"})
	})
	if _, ok := h.dir.Get(10); !ok {
		t.Error("source 10 not registered")
	}
	if !h.installer.wasCompleted("f") {
		t.Error("installer not told about completion")
	}

	h.loader.set("f", extension.LoadSuccess{Extension: installed("f", 2, v2)})
	h.events.ch <- pkghost.Event{Kind: pkghost.EventRemoved, PkgName: "f", Replacing: true}
	h.events.ch <- pkghost.Event{Kind: pkghost.EventAdded, PkgName: "f", Replacing: true}
	h.events.ch <- pkghost.Event{Kind: pkghost.EventReplaced, PkgName: "f"}
	waitFor(t, "f updated", func() bool {
		snap := h.snapshot(t)
		return len(snap.Installed) == 1 && snap.Installed[0].VersionCode == 2
	})
	if _, ok := h.dir.Get(10); ok {
		t.Error("source of the previous version still registered")
	}
	if _, ok := h.dir.Get(11); !ok {
		t.Error("source 11 not registered")
	}

	h.events.ch <- pkghost.Event{Kind: pkghost.EventRemoved, PkgName: "f"}
	waitFor(t, "f removed", func() bool { return len(h.snapshot(t).Installed) == 0 })
	if n := len(h.dir.List()); n != 0 {
		t.Errorf("directory holds %d sources after removal", n)
	}
}

func TestHostEvents_UntrustedPackage(t *testing.T) {
	h := newHarness(t)
	h.catalog.set([]extension.Available{available("g", 1)}, nil)
	if err := h.reg.FindAvailableExtensions(context.Background()); err != nil {
		t.Fatal(err)
	}

	h.loader.set("g", extension.LoadUntrusted{Extension: extension.Untrusted{PkgName: "g", SignatureHash: "h9"}})
	h.events.ch <- pkghost.Event{Kind: pkghost.EventAdded, PkgName: "g"}
	waitFor(t, "g untrusted", func() bool { return len(h.snapshot(t).Untrusted) == 1 })

	snap := h.snapshot(t)
	if len(snap.Available) != 0 {
		t.Errorf("untrusted package still available: %+v", snap.Available)
	}
	if len(h.dir.List()) != 0 {
		t.Error("untrusted package registered sources")
	}
	if !h.installer.wasCompleted("g") {
		t.Error("installer not told about completion")
	}
}

func TestTrustSignature_MovesAllPackagesWithHash(t *testing.T) {
	h := newHarness(t,
		extension.LoadUntrusted{Extension: extension.Untrusted{PkgName: "b", SignatureHash: "h1"}},
		extension.LoadUntrusted{Extension: extension.Untrusted{PkgName: "c", SignatureHash: "h1"}},
		extension.LoadUntrusted{Extension: extension.Untrusted{PkgName: "x", SignatureHash: "h2"}},
	)
	src := &fakeSource{id: 20, name: "bee"}
	h.loader.set("b", extension.LoadSuccess{Extension: installed("b", 1, src)})
	h.loader.set("c", extension.LoadFailure{PkgName: "c", Err: extension.ErrMalformedExtension})

	if _, ok := h.dir.Get(20); ok {
		t.Fatal("untrusted source registered before trust")
	}
	if err := h.reg.TrustSignature(context.Background(), "h1"); err != nil {
		t.Fatalf("TrustSignature: %v", err)
	}

	snap := h.snapshot(t)
	if got := installedNames(snap); !slices.Equal(got, []string{"b"}) {
		t.Errorf("installed = %v, want [b]", got)
	}
	if len(snap.Untrusted) != 1 || snap.Untrusted[0].PkgName != "x" {
		t.Errorf("untrusted = %+v, want [x]", snap.Untrusted)
	}
	if _, ok := h.dir.Get(20); !ok {
		t.Error("trusted source not registered")
	}
	if !slices.Equal(h.trust.added, []string{"h1"}) {
		t.Errorf("trusted = %v", h.trust.added)
	}
}

func TestInstallExtension_TracksSteps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ext := available("p", 3)
	ext.SHA256 = "abc"

	out, err := h.reg.InstallExtension(ctx, ext)
	if err != nil {
		t.Fatalf("InstallExtension: %v", err)
	}
	call := h.installer.calls[0]
	if call.url != "https://catalog.test/repo/p.zip" || call.sha256 != "abc" {
		t.Errorf("installer called with %+v", call)
	}

	call.steps <- extension.StepPending
	call.steps <- extension.StepDownloading
	for _, want := range []extension.InstallStep{extension.StepPending, extension.StepDownloading} {
		if got := <-out; got != want {
			t.Fatalf("step = %v, want %v", got, want)
		}
	}
	if got := h.snapshot(t).Steps["p"]; got != extension.StepDownloading {
		t.Errorf("tracked step = %v, want downloading", got)
	}

	call.steps <- extension.StepInstalled
	close(call.steps)
	if got := <-out; got != extension.StepInstalled {
		t.Fatalf("step = %v, want installed", got)
	}
	if _, ok := <-out; ok {
		t.Fatal("channel not closed after terminal step")
	}
	if _, ok := h.snapshot(t).Steps["p"]; ok {
		t.Error("step still tracked after pipeline ended")
	}
}

func TestInstallExtension_ErrorReported(t *testing.T) {
	h := newHarness(t)
	h.installer.lastErr = extension.ErrTimeout

	out, err := h.reg.InstallExtension(context.Background(), available("p", 1))
	if err != nil {
		t.Fatal(err)
	}
	call := h.installer.calls[0]
	call.steps <- extension.StepError
	close(call.steps)
	for range out {
	}

	select {
	case err := <-h.reg.Errors():
		if !errors.Is(err, extension.ErrTimeout) {
			t.Errorf("error event = %v, want ErrTimeout", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no error event")
	}
}

func TestInstallExtension_SupersededAttemptKeepsNewStep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ext := available("p", 2)

	first, err := h.reg.InstallExtension(ctx, ext)
	if err != nil {
		t.Fatal(err)
	}
	h.installer.calls[0].steps <- extension.StepPending
	<-first

	second, err := h.reg.InstallExtension(ctx, ext)
	if err != nil {
		t.Fatal(err)
	}
	h.installer.calls[1].steps <- extension.StepDownloading
	if got := <-second; got != extension.StepDownloading {
		t.Fatalf("step = %v, want downloading", got)
	}

	// The installer closes a superseded stream without a terminal step.
	close(h.installer.calls[0].steps)
	for range first {
	}

	if got, ok := h.snapshot(t).Steps["p"]; !ok || got != extension.StepDownloading {
		t.Errorf("tracked step = %v (present %v), want downloading", got, ok)
	}

	h.installer.calls[1].steps <- extension.StepInstalled
	close(h.installer.calls[1].steps)
	for range second {
	}
	waitFor(t, "step released", func() bool {
		_, ok := h.snapshot(t).Steps["p"]
		return !ok
	})
}

func TestUpdateExtension(t *testing.T) {
	h := newHarness(t, extension.LoadSuccess{Extension: installed("a", 5)})
	ctx := context.Background()

	if _, err := h.reg.UpdateExtension(ctx, installed("a", 5)); !errors.Is(err, ErrNotInCatalog) {
		t.Fatalf("err = %v, want ErrNotInCatalog", err)
	}

	h.catalog.set([]extension.Available{available("a", 7)}, nil)
	if err := h.reg.FindAvailableExtensions(ctx); err != nil {
		t.Fatal(err)
	}
	out, err := h.reg.UpdateExtension(ctx, installed("a", 5))
	if err != nil {
		t.Fatalf("UpdateExtension: %v", err)
	}
	call := h.installer.calls[0]
	if call.url != "https://catalog.test/repo/a.zip" {
		t.Errorf("url = %q", call.url)
	}
	close(call.steps)
	for range out {
	}
}

func TestUninstallExtension(t *testing.T) {
	h := newHarness(t)
	if err := h.reg.UninstallExtension(context.Background(), "a"); err != nil {
		t.Fatalf("UninstallExtension: %v", err)
	}
	if !slices.Equal(h.installer.uninstalled, []string{"a"}) {
		t.Errorf("uninstalled = %v", h.installer.uninstalled)
	}

	h.installer.uninstErr = extension.ErrHostInstallFailure
	if err := h.reg.UninstallExtension(context.Background(), "b"); !errors.Is(err, extension.ErrHostInstallFailure) {
		t.Errorf("err = %v", err)
	}
}
