package pagination

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{"zero values", Params{}, Params{Limit: DefaultLimit, Offset: 0}},
		{"negative offset", Params{Limit: 10, Offset: -5}, Params{Limit: 10, Offset: 0}},
		{"limit capped", Params{Limit: 500}, Params{Limit: MaxLimit}},
		{"in range", Params{Limit: 25, Offset: 50}, Params{Limit: 25, Offset: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValues(t *testing.T) {
	v := Params{Limit: 25, Offset: 50}.Values()
	if v.Get("limit") != "25" || v.Get("offset") != "50" {
		t.Errorf("Values() = %v", v)
	}
}

func TestNext(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}.Next()
	if p.Offset != 60 {
		t.Errorf("Next().Offset = %d, want 60", p.Offset)
	}
}

func TestHasMore(t *testing.T) {
	page := Page[string]{Data: []string{"a", "b"}, Total: 5, Limit: 2, Offset: 0}
	if !page.HasMore() {
		t.Error("HasMore() = false, want true")
	}
	last := Page[string]{Data: []string{"e"}, Total: 5, Limit: 2, Offset: 4}
	if last.HasMore() {
		t.Error("HasMore() = true on last page")
	}
}
