package db

import "testing"

func TestSortGroupCounts(t *testing.T) {
	rows := []GroupCount{
		{Value: "hindi", Count: 2},
		{Value: "english", Count: 3},
		{Value: "", Count: 1},
		{Value: "punjabi", Count: 2},
	}

	got := SortGroupCounts(rows, 0)
	want := []GroupCount{
		{Value: "english", Count: 3},
		{Value: "hindi", Count: 2},
		{Value: "punjabi", Count: 2},
		{Value: "", Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSortGroupCounts_Limit(t *testing.T) {
	rows := []GroupCount{{Value: "a", Count: 1}, {Value: "b", Count: 5}, {Value: "c", Count: 3}}

	got := SortGroupCounts(rows, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Value != "b" || got[1].Value != "c" {
		t.Errorf("got %+v", got)
	}
}

func TestSortGroupCounts_MergesDuplicates(t *testing.T) {
	rows := []GroupCount{{Value: "", Count: 2}, {Value: "english", Count: 1}, {Value: "", Count: 1}}

	got := SortGroupCounts(rows, 0)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Value != "" || got[0].Count != 3 {
		t.Errorf("merged row = %+v, want {\"\" 3}", got[0])
	}
}
