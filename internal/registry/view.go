package registry

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sourcekit/extmgr/internal/extension"
)

// DefaultDebounce is how long View waits for the lists to settle.
const DefaultDebounce = 100 * time.Millisecond

// ItemKind tells which list an Item comes from.
type ItemKind int

const (
	ItemInstalled ItemKind = iota
	ItemUntrusted
	ItemAvailable
)

func (k ItemKind) String() string {
	switch k {
	case ItemInstalled:
		return "installed"
	case ItemUntrusted:
		return "untrusted"
	case ItemAvailable:
		return "available"
	default:
		return "unknown"
	}
}

// Item is one row of the combined view. Only the field matching Kind is set.
type Item struct {
	Kind      ItemKind
	Installed extension.Installed
	Untrusted extension.Untrusted
	Available extension.Available
	Step      extension.InstallStep
}

// PkgName returns the package of the extension behind the item.
func (it Item) PkgName() string {
	switch it.Kind {
	case ItemInstalled:
		return it.Installed.PkgName
	case ItemUntrusted:
		return it.Untrusted.PkgName
	default:
		return it.Available.PkgName
	}
}

// Name returns the display name of the extension behind the item.
func (it Item) Name() string {
	switch it.Kind {
	case ItemInstalled:
		return it.Installed.Name
	case ItemUntrusted:
		return it.Untrusted.Name
	default:
		return it.Available.Name
	}
}

// View combines the four registry streams into one list, emitted once the
// streams have been quiet for debounce. Slow readers only see the newest
// list. The channel closes when ctx is done or the registry stops.
func (r *Registry) View(ctx context.Context, debounce time.Duration) <-chan []Item {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	installedCh := r.Installed(ctx)
	untrustedCh := r.Untrusted(ctx)
	availableCh := r.Available(ctx)
	stepsCh := r.InstallSteps(ctx)

	out := make(chan []Item, 1)
	go func() {
		defer close(out)

		var (
			installed []extension.Installed
			untrusted []extension.Untrusted
			available []extension.Available
			steps     map[string]extension.InstallStep
			seen      [4]bool
		)
		timer := time.NewTimer(debounce)
		timer.Stop()
		defer timer.Stop()

		touch := func(i int) {
			seen[i] = true
			if seen == [4]bool{true, true, true, true} {
				timer.Reset(debounce)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-installedCh:
				if !ok {
					return
				}
				installed = v
				touch(0)
			case v, ok := <-untrustedCh:
				if !ok {
					return
				}
				untrusted = v
				touch(1)
			case v, ok := <-availableCh:
				if !ok {
					return
				}
				available = v
				touch(2)
			case v, ok := <-stepsCh:
				if !ok {
					return
				}
				steps = v
				touch(3)
			case <-timer.C:
				items := buildItems(installed, untrusted, available, steps)
				select {
				case <-out:
				default:
				}
				out <- items
			}
		}
	}()
	return out
}

func buildItems(installed []extension.Installed, untrusted []extension.Untrusted, available []extension.Available, steps map[string]extension.InstallStep) []Item {
	installed = slices.Clone(installed)
	slices.SortStableFunc(installed, func(a, b extension.Installed) int {
		if a.HasUpdate != b.HasUpdate {
			if a.HasUpdate {
				return -1
			}
			return 1
		}
		return compareNames(a.Name, b.Name)
	})

	untrusted = slices.Clone(untrusted)
	slices.SortStableFunc(untrusted, func(a, b extension.Untrusted) int {
		return compareNames(a.Name, b.Name)
	})

	// The available stream is already filtered, but it may lag the others.
	available = extension.FilterAvailable(available, installed, untrusted)
	slices.SortStableFunc(available, func(a, b extension.Available) int {
		return compareNames(a.Name, b.Name)
	})

	items := make([]Item, 0, len(installed)+len(untrusted)+len(available))
	for _, ext := range installed {
		items = append(items, Item{Kind: ItemInstalled, Installed: ext, Step: steps[ext.PkgName]})
	}
	for _, ext := range untrusted {
		items = append(items, Item{Kind: ItemUntrusted, Untrusted: ext, Step: steps[ext.PkgName]})
	}
	for _, ext := range available {
		items = append(items, Item{Kind: ItemAvailable, Available: ext, Step: steps[ext.PkgName]})
	}
	return items
}

func compareNames(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}
