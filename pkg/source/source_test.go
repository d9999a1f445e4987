package source

import (
	"context"
	"testing"
)

type nopSource struct{}

func (nopSource) System() SystemID { return Eventbrite }
func (nopSource) Fetch(ctx context.Context, since int64, opts ...StreamOption) *Stream {
	return NewStream(ctx, "nop", since, func(context.Context, int64, int) (Page, error) { return Page{}, nil }, opts...)
}

func TestRegistry(t *testing.T) {
	f := func(context.Context, map[string]any) (Source, error) { return nopSource{}, nil }
	if err := Register("registry-test", f); err != nil {
		t.Fatal(err)
	}
	if err := Register("registry-test", f); err == nil {
		t.Fatal("duplicate registration should fail")
	}
	if err := Register("", f); err == nil {
		t.Fatal("empty name should fail")
	}
	got, ok := Resolve("registry-test")
	if !ok {
		t.Fatal("factory not resolved")
	}
	src, err := got(context.Background(), nil)
	if err != nil || src.System() != Eventbrite {
		t.Fatalf("src=%v err=%v", src, err)
	}
	found := false
	Range(func(name string, _ Factory) {
		if name == "registry-test" {
			found = true
		}
	})
	if !found {
		t.Fatal("Range did not visit registered factory")
	}
}

func TestParseSystem(t *testing.T) {
	id, err := ParseSystem(" Eventbrite ")
	if err != nil || id != Eventbrite {
		t.Fatalf("id=%v err=%v", id, err)
	}
	if Eventbrite.String() != "eventbrite" {
		t.Fatalf("String()=%q", Eventbrite.String())
	}
	if _, err := ParseSystem("meetup"); err == nil {
		t.Fatal("expected error for unknown system")
	}
}
