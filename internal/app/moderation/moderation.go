package moderation

import "strings"

// Detection is a pure function over this fixed list; no I/O happens
// inside the send transaction.
var bannedTerms = []string{
	"scam",
	"penipu",
	"penipuan",
	"judi online",
	"rekening palsu",
	"transfer di luar aplikasi",
}

type Verdict struct {
	Flagged      bool
	MatchedTerms []string
}

// Scan lower-cases the content and checks containment against the banned
// term list.
func Scan(content string) Verdict {
	lowered := strings.ToLower(content)

	var matched []string
	for _, term := range bannedTerms {
		if strings.Contains(lowered, term) {
			matched = append(matched, term)
		}
	}

	return Verdict{
		Flagged:      len(matched) > 0,
		MatchedTerms: matched,
	}
}
