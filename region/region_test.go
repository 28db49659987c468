package region

import (
	"reflect"
	"testing"
)

func TestPositionBefore(t *testing.T) {
	cases := []struct {
		p, q Position
		want bool
	}{
		{Position{0, 0}, Position{0, 0}, false},
		{Position{0, 0}, Position{0, 1}, true},
		{Position{0, 5}, Position{1, 0}, true},
		{Position{2, 0}, Position{1, 9}, false},
	}
	for _, c := range cases {
		if got := c.p.Before(c.q); got != c.want {
			t.Errorf("Before(%v, %v) = %v, want %v", c.p, c.q, got, c.want)
		}
	}
}

func TestKeyForNormalizes(t *testing.T) {
	a := KeyFor("/Work/Project/Main.C")
	b := KeyFor("/work/project/main.c")
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
}

func TestCacheUpdateReplaces(t *testing.T) {
	c := NewCache()
	key := KeyFor("/tmp/a.c")

	first := Set{{Start: Position{Line: 1}, End: Position{Line: 3}}}
	c.Update(key, first)
	if got := c.Get(key); !reflect.DeepEqual(got, first) {
		t.Fatalf("Get = %v, want %v", got, first)
	}

	second := Set{{Start: Position{Line: 8}, End: Position{Line: 9}}}
	c.Update(key, second)
	if got := c.Get(key); !reflect.DeepEqual(got, second) {
		t.Fatalf("after second update Get = %v, want %v (full replace, not merge)", got, second)
	}
}

func TestCacheUpdateIdempotent(t *testing.T) {
	c := NewCache()
	key := KeyFor("/tmp/b.c")
	r := Set{{Start: Position{Line: 2}, End: Position{Line: 5}}}

	c.Update(key, r)
	c.Update(key, r)
	if got := c.Get(key); !reflect.DeepEqual(got, r) {
		t.Errorf("Get = %v, want %v", got, r)
	}
}

func TestCacheEmptyReplaceWins(t *testing.T) {
	c := NewCache()
	key := KeyFor("/tmp/c.c")

	c.Update(key, Set{{Start: Position{Line: 0}, End: Position{Line: 4}}})
	c.Update(key, Set{})
	if got := c.Get(key); len(got) != 0 {
		t.Errorf("Get = %v, want empty set after empty replace", got)
	}
}

func TestCacheGetAbsent(t *testing.T) {
	c := NewCache()
	if got := c.Get(KeyFor("/nope.c")); got == nil || len(got) != 0 {
		t.Errorf("Get on absent key = %v, want empty non-nil set", got)
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache()
	c.Update(KeyFor("/tmp/d.c"), Set{{End: Position{Line: 1}}})
	c.Update(KeyFor("/tmp/e.c"), Set{{End: Position{Line: 2}}})
	c.Clear()
	if len(c.Keys()) != 0 {
		t.Errorf("Keys after Clear = %v, want none", c.Keys())
	}
}

func TestCacheCopiesInput(t *testing.T) {
	c := NewCache()
	key := KeyFor("/tmp/f.c")
	s := Set{{Start: Position{Line: 1}, End: Position{Line: 2}}}
	c.Update(key, s)
	s[0].End.Line = 99
	if got := c.Get(key); got[0].End.Line != 2 {
		t.Errorf("cache aliased caller slice: %v", got)
	}
}
