package loop

import (
	"net/url"

	"warden/internal/ledger"
)

// dimensions is the set of derived fields spec section 3 computes per tool
// call from the command's primary URL.
type dimensions struct {
	URL         string
	Domain      string
	Query       string
	QueryFamily string
	SourceClass ledger.SourceClass
	IsSearch    bool
}

// classifyCommand derives dimensions from cmd's first URL, if any.
func classifyCommand(cmd string) dimensions {
	rawURL := ledger.ExtractFirstURL(cmd)
	if rawURL == "" {
		return dimensions{}
	}
	domain := ledger.NormalizeDomain(rawURL)
	query := ""
	if u, err := url.Parse(rawURL); err == nil {
		if decoded, err := url.QueryUnescape(u.RawQuery); err == nil {
			query = decoded
		} else {
			query = u.RawQuery
		}
	}
	return dimensions{
		URL:         rawURL,
		Domain:      domain,
		Query:       query,
		QueryFamily: ledger.QueryFamily(rawURL),
		SourceClass: ledger.ClassifySource(domain, rawURL),
		IsSearch:    domain != "",
	}
}
