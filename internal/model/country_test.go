package model

import "testing"

func TestParseSortMode(t *testing.T) {
	tests := []struct {
		in     string
		want   SortMode
		wantOK bool
	}{
		{"", SortNameAsc, true},
		{"name_asc", SortNameAsc, true},
		{"gdp_desc", SortGDPDesc, true},
		{"gdp_asc", SortGDPAsc, true},
		{"  GDP_DESC ", SortGDPDesc, true},
		{"population", SortNameAsc, false},
		{"gdp", SortNameAsc, false},
	}

	for _, tt := range tests {
		got, ok := ParseSortMode(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSortMode(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
