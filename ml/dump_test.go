package ml

import "testing"

func TestDump(t *testing.T) {
	cases := []struct {
		name string
		a    Array
		opts []DumpOptions
		want string
	}{
		{"scalar", NewArray([]float32{1.5}), nil, "1.5000"},
		{"vector", NewArray([]float32{1, -2, 3}, 3), []DumpOptions{DumpWithPrecision(1)}, "[ 1.0, -2.0,  3.0]"},
		{"matrix", NewArray([]float32{1, 2, 3, 4}, 2, 2), []DumpOptions{DumpWithPrecision(0)}, "[[ 1,  2],\n [ 3,  4]]"},
		{
			"edge items",
			NewArray([]float32{0, 1, 2, 3, 4, 5, 6, 7}, 8),
			[]DumpOptions{DumpWithPrecision(0), DumpWithThreshold(4), DumpWithEdgeItems(2)},
			"[ 0,  1, ...,  6,  7]",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dump(tt.a, tt.opts...); got != tt.want {
				t.Errorf("erwartet %q, bekommen %q", tt.want, got)
			}
		})
	}
}

func TestArrayInts(t *testing.T) {
	a := IntArray([]int32{3, -1, 7}, 3)
	if a.Len() != 3 {
		t.Fatalf("erwartet 3 Elemente, bekommen %d", a.Len())
	}
	for i, want := range []int32{3, -1, 7} {
		if got := a.Ints()[i]; got != want {
			t.Errorf("Index %d: erwartet %d, bekommen %d", i, want, got)
		}
	}
}
