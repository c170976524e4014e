package metrics

import "testing"

func TestResultClass(t *testing.T) {
	cases := map[int]string{0: "network", 200: "2xx", 204: "2xx", 304: "3xx", 401: "4xx", 503: "5xx"}
	for code, want := range cases {
		if got := ResultClass(code); got != want {
			t.Fatalf("code %d: want %s got %s", code, want, got)
		}
	}
}
