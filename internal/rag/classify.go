package rag

import "strings"

// QueryClass selects the fallback answer's opening template.
type QueryClass int

const (
	ClassGeneric QueryClass = iota
	ClassWhoOrConnection
	ClassWhat
)

// classKeywords maps query tokens to classes. WhoOrConnection takes
// precedence when tokens of both classes appear.
var classKeywords = map[string]QueryClass{
	"who":        ClassWhoOrConnection,
	"whom":       ClassWhoOrConnection,
	"connection": ClassWhoOrConnection,
	"associate":  ClassWhoOrConnection,
	"what":       ClassWhat,
}

// Classify derives the query's class from its lowercased tokens.
func Classify(query string) QueryClass {
	class := ClassGeneric
	for _, token := range strings.Fields(strings.ToLower(query)) {
		token = strings.Trim(token, ".,!?;:'\"()")
		match, ok := classKeywords[token]
		if !ok {
			continue
		}
		if match == ClassWhoOrConnection {
			return ClassWhoOrConnection
		}
		class = match
	}
	return class
}
