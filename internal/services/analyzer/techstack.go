package analyzer

import (
	"net/http"
	"sort"
	"strings"
)

// fingerprintHeaders are the response headers that leak server software
var fingerprintHeaders = []string{"Server", "X-Powered-By", "X-AspNet-Version", "X-Generator"}

// cookieFrameworks maps session cookie names to the framework that sets them
var cookieFrameworks = map[string]string{
	"phpsessid":       "PHP",
	"jsessionid":      "Java",
	"csrftoken":       "Django",
	"laravel_session": "Laravel",
	"rack.session":    "Ruby",
	"connect.sid":     "Express",
	"xsrf-token":      "Angular/Laravel",
}

// FingerprintTech derives the server's technology stack from response
// headers and session cookie names. Hidden services rarely strip these
// even when they hide everything else.
func (a *Analyzer) FingerprintTech(header http.Header, cookies []*http.Cookie) []string {
	seen := make(map[string]bool)

	for _, name := range fingerprintHeaders {
		value := strings.TrimSpace(header.Get(name))
		if value == "" {
			continue
		}
		switch name {
		case "X-AspNet-Version":
			seen["ASP.NET "+value] = true
		case "X-Generator":
			seen[value] = true
		default:
			seen[value] = true
		}
	}

	for _, cookie := range cookies {
		if framework, ok := cookieFrameworks[strings.ToLower(cookie.Name)]; ok {
			seen[framework] = true
		}
	}

	stack := make([]string, 0, len(seen))
	for tech := range seen {
		stack = append(stack, tech)
	}
	sort.Strings(stack)
	return stack
}
