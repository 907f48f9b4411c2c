package graph

import (
	"fmt"
	"regexp"
)

// Identifier validation and quoting for the pieces of a Cypher query that
// cannot be bound as parameters: node labels and relationship types. All
// values (ids, properties) are always parameter-bound; only identifiers
// passing these checks are ever interpolated.

var (
	identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	curiePattern      = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(:[a-zA-Z_][a-zA-Z0-9_]*)*$`)
)

func isValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// cypherLabel validates a node label and backtick-quotes it when it is a
// biolink CURIE ("biolink:NamedThing") rather than a bare identifier.
func cypherLabel(label string) (string, error) {
	if isValidIdentifier(label) {
		return label, nil
	}
	if !curiePattern.MatchString(label) {
		return "", fmt.Errorf("invalid node label: %s", label)
	}
	return "`" + label + "`", nil
}

// cypherRelType turns a biolink CURIE predicate ("biolink:related_to") into
// a backtick-quoted Cypher relationship type. Predicates are CURIEs, not
// bare identifiers, so the stricter identifier whitelist doesn't apply
// here; the pattern still rejects spaces, quotes, parens and backticks,
// which is what actually matters for injection safety.
func cypherRelType(predicate string) (string, error) {
	if !curiePattern.MatchString(predicate) {
		return "", fmt.Errorf("invalid edge predicate: %s", predicate)
	}
	return "`" + predicate + "`", nil
}
