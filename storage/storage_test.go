package storage

import (
	"testing"
	"time"
)

func TestPageRequest_Normalize(t *testing.T) {
	tests := []struct {
		in, want PageRequest
	}{
		{PageRequest{}, PageRequest{Page: 1, Size: DefaultPageSize}},
		{PageRequest{Page: -3, Size: -1}, PageRequest{Page: 1, Size: DefaultPageSize}},
		{PageRequest{Page: 4, Size: 1000}, PageRequest{Page: 4, Size: MaxPageSize}},
		{PageRequest{Page: 2, Size: 5}, PageRequest{Page: 2, Size: 5}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	all := []int{1, 2, 3, 4, 5, 6, 7}

	p := Paginate(all, PageRequest{Page: 2, Size: 3})
	if p.Total != 7 || p.Page != 2 || len(p.Items) != 3 || p.Items[0] != 4 {
		t.Fatalf("page 2 = %+v", p)
	}

	p = Paginate(all, PageRequest{Page: 3, Size: 3})
	if len(p.Items) != 1 || p.Items[0] != 7 {
		t.Fatalf("last page = %+v", p)
	}

	p = Paginate(all, PageRequest{Page: 100000, Size: 100000})
	if len(p.Items) != 0 || p.Total != 7 {
		t.Fatalf("beyond range = %+v", p)
	}
	if p.Items == nil {
		t.Fatalf("items must be an empty slice, not nil")
	}
}

func TestPatches(t *testing.T) {
	if !(MoviePatch{}).Empty() || !(ActorPatch{}).Empty() {
		t.Fatal("zero patches must be empty")
	}

	title := "Worried Tom"
	m := MoviePatch{Title: &title}.Apply(Movie{ID: 1, Title: "Dragon Age", ReleaseDate: time.Unix(0, 0)})
	if m.Title != title || m.ID != 1 || !m.ReleaseDate.Equal(time.Unix(0, 0)) {
		t.Fatalf("movie patch = %+v", m)
	}

	age := 21
	a := ActorPatch{Age: &age}.Apply(Actor{ID: 2, Name: "Tom Hanks", Age: 35, Gender: "male"})
	if a.Age != 21 || a.Name != "Tom Hanks" || a.Gender != "male" {
		t.Fatalf("actor patch = %+v", a)
	}
}
