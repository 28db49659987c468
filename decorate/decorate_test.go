package decorate

import (
	"reflect"
	"testing"

	"github.com/odvcencio/shade/document"
	"github.com/odvcencio/shade/host"
	"github.com/odvcencio/shade/host/hosttest"
	"github.com/odvcencio/shade/region"
	"github.com/odvcencio/shade/visibility"
)

const sample = "#if 1\nint x;\n#else\nint y;\n#endif"

func newFixture(mode visibility.Mode) (*Synchronizer, *hosttest.Editor, *region.Cache, *hosttest.Settings) {
	ed := hosttest.NewEditor()
	docs := document.NewStore()
	docs.Open("/tmp/a.c", "c", sample)
	cache := region.NewCache()
	settings := hosttest.NewSettings()
	current := mode
	s := NewSynchronizer(ed, docs, cache, settings, func() visibility.Mode { return current })
	return s, ed, cache, settings
}

func view() host.View {
	return host.View{ID: "v1", Path: "/tmp/a.c", Language: "c", FileBacked: true}
}

func TestStyleReusedWhileOpacityStable(t *testing.T) {
	s, ed, _, _ := newFixture(visibility.Hidden)

	first, err := s.Style()
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Style()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("style recreated without opacity change: %d vs %d", first, second)
	}
	if op, _ := ed.StyleOpacity(first); op != 0.4 {
		t.Errorf("hidden-mode opacity = %v, want local 0.4", op)
	}
}

func TestStyleRecreatedOnOpacityChange(t *testing.T) {
	s, ed, _, settings := newFixture(visibility.Hidden)

	first, _ := s.Style()
	settings.OpacityValue = 0.1
	second, _ := s.Style()
	if first == second {
		t.Fatal("style not recreated after opacity change")
	}
	if _, alive := ed.StyleOpacity(first); alive {
		t.Error("old style not disposed")
	}
	if ed.LiveStyles() != 1 {
		t.Errorf("live styles = %d, want 1", ed.LiveStyles())
	}
}

func TestVisibleModeUsesServiceOpacity(t *testing.T) {
	s, ed, _, _ := newFixture(visibility.Visible)
	id, _ := s.Style()
	if op, _ := ed.StyleOpacity(id); op != 0.55 {
		t.Errorf("visible-mode opacity = %v, want service 0.55", op)
	}
}

func TestEligibility(t *testing.T) {
	s, _, _, _ := newFixture(visibility.Hidden)
	cases := []struct {
		v    host.View
		want bool
	}{
		{host.View{Path: "/a.c", Language: "c", FileBacked: true}, true},
		{host.View{Path: "/a.cc", Language: "cpp", FileBacked: true}, true},
		{host.View{Path: "/a.go", Language: "go", FileBacked: true}, false},
		{host.View{Path: "untitled-1", Language: "c", FileBacked: false}, false},
	}
	for _, c := range cases {
		if got := s.Eligible(c.v); got != c.want {
			t.Errorf("Eligible(%+v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestApplyToIneligibleIsNoop(t *testing.T) {
	s, ed, _, _ := newFixture(visibility.Hidden)
	v := host.View{ID: "v9", Path: "/tmp/a.go", Language: "go", FileBacked: true}
	if err := s.ApplyTo(v); err != nil {
		t.Fatal(err)
	}
	if len(ed.Commands) != 0 {
		t.Errorf("commands issued for ineligible view: %v", ed.Commands)
	}
}

func TestHiddenRangesSupersetOfVisible(t *testing.T) {
	inactive := region.Set{{
		Start: region.Position{Line: 2},
		End:   region.Position{Line: 3},
	}}

	sVisible, _, cacheV, _ := newFixture(visibility.Visible)
	cacheV.Update(region.KeyFor("/tmp/a.c"), inactive)
	visibleRanges := sVisible.Ranges(view())

	sHidden, _, cacheH, _ := newFixture(visibility.Hidden)
	cacheH.Update(region.KeyFor("/tmp/a.c"), inactive)
	hiddenRanges := sHidden.Ranges(view())

	for _, r := range visibleRanges {
		found := false
		for _, h := range hiddenRanges {
			if reflect.DeepEqual(r, h) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("visible-mode range %v missing from hidden-mode set", r)
		}
	}
	if len(hiddenRanges) <= len(visibleRanges) {
		t.Errorf("directive lines not additional: hidden %d, visible %d",
			len(hiddenRanges), len(visibleRanges))
	}
}

func TestHiddenModeDecoratesDirectiveLines(t *testing.T) {
	s, _, cache, _ := newFixture(visibility.Hidden)
	cache.Update(region.KeyFor("/tmp/a.c"), region.Set{{
		Start: region.Position{Line: 2},
		End:   region.Position{Line: 3},
	}})

	want := []region.Region{
		{Start: region.Position{Line: 2}, End: region.Position{Line: 3}},
		region.Line(0),
		region.Line(2),
		region.Line(4),
	}
	if got := s.Ranges(view()); !reflect.DeepEqual(got, want) {
		t.Errorf("Ranges = %v, want %v", got, want)
	}
}

func TestDirectivesInVisiblePolicy(t *testing.T) {
	s, _, _, settings := newFixture(visibility.Visible)
	if got := s.Ranges(view()); len(got) != 0 {
		t.Fatalf("visible mode without policy decorated %v", got)
	}
	settings.DimWhenVisible = true
	want := []region.Region{region.Line(0), region.Line(2), region.Line(4)}
	if got := s.Ranges(view()); !reflect.DeepEqual(got, want) {
		t.Errorf("Ranges with policy = %v, want %v", got, want)
	}
}

func TestRefreshAllActiveFirst(t *testing.T) {
	s, ed, _, _ := newFixture(visibility.Hidden)
	ed.AddView(host.View{ID: "v1", Path: "/tmp/a.c", Language: "c", FileBacked: true})
	ed.AddView(host.View{ID: "v2", Path: "/tmp/a.c", Language: "c", FileBacked: true})
	ed.SetActive("v2")

	if err := s.RefreshAll(); err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, c := range ed.Commands {
		if c.Op == "decorate" {
			order = append(order, c.ViewID)
		}
	}
	if !reflect.DeepEqual(order, []string{"v2", "v1"}) {
		t.Errorf("decoration order = %v, want active view first", order)
	}
}

func TestDisposeIdempotent(t *testing.T) {
	s, ed, _, _ := newFixture(visibility.Hidden)
	if _, err := s.Style(); err != nil {
		t.Fatal(err)
	}
	s.Dispose()
	s.Dispose()
	if ed.LiveStyles() != 0 {
		t.Errorf("live styles after Dispose = %d", ed.LiveStyles())
	}
}
