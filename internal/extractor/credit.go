package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// creditUnit is the value of one 万
const creditUnit = 10000

var creditPattern = regexp.MustCompile(`([\d一二三四五六七八九])万`)

var kanjiDigits = map[string]int{
	"一": 1,
	"二": 2,
	"三": 3,
	"四": 4,
	"五": 5,
	"六": 6,
	"七": 7,
	"八": 8,
	"九": 9,
}

// ParseCredit reads the first "<digit>万" in text and returns it in yen.
// Only a single-digit multiplier is recognised; no match yields 0.
func ParseCredit(text string) int {
	m := creditPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}

	if n, ok := kanjiDigits[m[1]]; ok {
		return n * creditUnit
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n * creditUnit
}

// normalizeText flattens catch copy that may carry HTML markup or entities
func normalizeText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
