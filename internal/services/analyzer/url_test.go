package analyzer

import (
	"testing"

	"github.com/ternarybob/arbor"
)

func newTestAnalyzer() *Analyzer {
	return New(arbor.NewLogger(), []string{".png", ".jpg", ".zip", ".pdf"})
}

const (
	v2Host = "abcdefgh23456789.onion"
	v3Host = "thisisaveryrealisticlookingv3onionaddressabcdefgh234567a.onion"
)

func TestValidateURL(t *testing.T) {
	a := newTestAnalyzer()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"v2 address", "http://" + v2Host + "/", true},
		{"v3 address", "http://" + v3Host + "/market/", true},
		{"https accepted", "https://" + v2Host + "/", true},
		{"clearnet rejected", "http://example.com/", false},
		{"ftp scheme rejected", "ftp://" + v2Host + "/", false},
		{"wrong label length", "http://tooshort2345.onion/", false},
		{"invalid base32 chars", "http://abcdefgh23456789.onion/", true},
		{"uppercase label normalized by Hostname", "http://ABCDEFGH23456789.onion/", true},
		{"digit 0 not base32", "http://abcdefgh23456780.onion/", false},
		{"digit 1 not base32", "http://abcdefgh23456781.onion/", false},
		{"blocked extension", "http://" + v2Host + "/image.png", false},
		{"blocked extension uppercase", "http://" + v2Host + "/FILE.ZIP", false},
		{"allowed extension", "http://" + v2Host + "/page.html", true},
		{"subdomain before onion label", "http://www." + v2Host + "/", true},
		{"empty", "", false},
		{"garbage", "://not-a-url", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.ValidateURL(tt.url); got != tt.want {
				t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	a := newTestAnalyzer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"adds trailing slash to bare host", "http://" + v2Host, "http://" + v2Host + "/"},
		{"adds trailing slash to directory path", "http://" + v2Host + "/market", "http://" + v2Host + "/market/"},
		{"keeps file path unslashed", "http://" + v2Host + "/index.html", "http://" + v2Host + "/index.html"},
		{"drops fragment", "http://" + v2Host + "/page/#section", "http://" + v2Host + "/page/"},
		{"keeps short query", "http://" + v2Host + "/search/?q=btc", "http://" + v2Host + "/search/?q=btc"},
		{"lowercases host", "http://" + "ABCDEFGH23456789.ONION" + "/x/", "http://" + v2Host + "/x/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.NormalizeURL(tt.in)
			if err != nil {
				t.Fatalf("NormalizeURL(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL_DropsLongQuery(t *testing.T) {
	a := newTestAnalyzer()

	long := "http://" + v2Host + "/p/?token="
	for i := 0; i < 120; i++ {
		long += "x"
	}

	got, err := a.NormalizeURL(long)
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://"+v2Host+"/p/" {
		t.Errorf("long query not dropped: %q", got)
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	a := newTestAnalyzer()

	inputs := []string{
		"http://" + v2Host,
		"http://" + v2Host + "/market",
		"http://" + v3Host + "/a/b/c.html#frag",
		"https://" + v2Host + "/search?q=hello",
		"HTTP://ABCDEFGH23456789.onion/Path",
	}

	for _, in := range inputs {
		once, err := a.NormalizeURL(in)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error: %v", in, err)
		}
		twice, err := a.NormalizeURL(once)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) error: %v", once, err)
		}
		if once != twice {
			t.Errorf("normalization not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestDomain(t *testing.T) {
	a := newTestAnalyzer()

	if got := a.Domain("http://" + v2Host + "/page/"); got != v2Host {
		t.Errorf("Domain() = %q, want %q", got, v2Host)
	}
	if got := a.Domain("http://ABCDEFGH23456789.ONION:8080/"); got != v2Host {
		t.Errorf("Domain() should lowercase and strip port, got %q", got)
	}
}
