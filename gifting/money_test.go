package gifting

import "testing"

func TestMinorMajorRoundTrip(t *testing.T) {
	t.Parallel()

	for _, major := range []int64{0, 1, 99, 100, 5000, 50000, 1234567} {
		if got := ToMajor(ToMinor(major)); got != major {
			t.Errorf("ToMajor(ToMinor(%d)) = %d, want %d", major, got, major)
		}
	}
}

func TestToMinor(t *testing.T) {
	t.Parallel()

	if got := ToMinor(5000); got != 500000 {
		t.Errorf("ToMinor(5000) = %d, want 500000", got)
	}
}

func TestFormatMinor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		minor int64
		want  string
	}{
		{minor: 0, want: "₦0"},
		{minor: 500, want: "₦5"},
		{minor: 500000, want: "₦5,000"},
		{minor: 123456700, want: "₦1,234,567"},
	}

	for _, tc := range cases {
		if got := FormatMinor(tc.minor); got != tc.want {
			t.Errorf("FormatMinor(%d) = %q, want %q", tc.minor, got, tc.want)
		}
	}
}
