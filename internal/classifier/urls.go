package classifier

import (
	"regexp"
	"strings"
)

var (
	fullURLPattern  = regexp.MustCompile(`http[s]?://(?:[a-zA-Z0-9$\-_@.&+!*(),/?=:;~#]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	shortURLPattern = regexp.MustCompile(`(?:[a-zA-Z0-9-]+\.)*[a-zA-Z0-9-]+\.[a-zA-Z]{2,}/[a-zA-Z0-9]+`)
)

// shortenerDomains are link shorteners that commonly appear without a scheme.
var shortenerDomains = []string{"bit.ly", "tinyurl.com", "goo.gl"}

// ExtractURLs collects fully-qualified http(s) links plus bare shortener links,
// normalizing the latter to https.
func ExtractURLs(text string) []string {
	urls := fullURLPattern.FindAllString(text, -1)

	for _, candidate := range shortURLPattern.FindAllString(text, -1) {
		if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
			continue
		}
		for _, domain := range shortenerDomains {
			if strings.Contains(candidate, domain) {
				urls = append(urls, "https://"+candidate)
				break
			}
		}
	}
	return urls
}
