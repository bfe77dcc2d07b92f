package coordgateway

import "testing"

func TestRetryAfterSeconds(t *testing.T) {
	cases := []struct {
		eps  int
		want int
	}{
		{1000, 1},
		{1, 1},
		{0, 1},
		{2, 1},
	}
	for _, c := range cases {
		if got := RetryAfterSeconds(c.eps); got != c.want {
			t.Errorf("RetryAfterSeconds(%d) = %d, want %d", c.eps, got, c.want)
		}
	}
}
