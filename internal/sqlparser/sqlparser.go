// Package sqlparser extracts table references from SQL embedded in BI
// workbooks and transform models so lineage edges (spec §4.4 step 3,
// derived_from) can be built without the connector itself enumerating
// its upstream tables.
//
// No SQL-parsing library appears anywhere in the retrieved corpus
// (DESIGN.md, C13), so this is a small dialect-tagged tokenizer,
// shaped like the teacher's internal/treesitter extractors: a single
// Parse entry point returning a result-plus-warnings value and never a
// hard error, because malformed embedded SQL must not fail a fetch
// (spec §4.11: "lineage extraction failures are warnings, not fatal").
package sqlparser

import (
	"strings"
)

// TableRef is one table reference found in a SQL statement.
type TableRef struct {
	Schema string
	Table  string
}

// ParseResult holds every table reference extracted from one
// statement, plus non-fatal warnings about derived tables (a "(" right
// after FROM/JOIN) the tokenizer couldn't resolve. References to CTE
// names are dropped without a warning.
type ParseResult struct {
	Dialect  string
	Tables   []TableRef
	Warnings []string
}

var fromLikeKeywords = map[string]struct{}{
	"from": {}, "join": {},
}

// Parse extracts table references following FROM/JOIN clauses. It is
// deliberately not a full SQL grammar: a derived table after FROM/JOIN
// is reported as a warning rather than causing an error, while
// references to CTE names and names with more than three dotted parts
// are skipped without a warning.
func Parse(dialect, sql string) ParseResult {
	result := ParseResult{Dialect: dialect}
	cteNames := collectCTENames(sql)

	tokens := tokenize(sql)
	seen := make(map[TableRef]struct{})
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		if _, ok := fromLikeKeywords[lower]; !ok {
			continue
		}
		if i+1 >= len(tokens) {
			continue
		}
		candidate := tokens[i+1]
		if isReservedWord(candidate) {
			continue
		}
		if strings.HasPrefix(candidate, "(") {
			result.Warnings = append(result.Warnings, "unresolved derived table near position "+candidate)
			continue
		}

		ref, ok := splitQualified(candidate)
		if !ok {
			continue
		}
		if _, isCTE := cteNames[strings.ToLower(ref.Table)]; isCTE {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		result.Tables = append(result.Tables, ref)
	}
	return result
}

func splitQualified(token string) (TableRef, bool) {
	clean := strings.Trim(token, "`\"[];,")
	if clean == "" {
		return TableRef{}, false
	}
	parts := strings.Split(clean, ".")
	switch len(parts) {
	case 1:
		return TableRef{Table: parts[0]}, true
	case 2:
		return TableRef{Schema: parts[0], Table: parts[1]}, true
	case 3:
		// database.schema.table — fold database into schema, the
		// lineage edge only needs the leaf two segments.
		return TableRef{Schema: parts[1], Table: parts[2]}, true
	default:
		return TableRef{}, false
	}
}

func collectCTENames(sql string) map[string]struct{} {
	names := make(map[string]struct{})
	tokens := tokenize(sql)
	for i, tok := range tokens {
		if strings.EqualFold(tok, "with") || strings.EqualFold(tok, "as") {
			continue
		}
		if i > 0 && strings.EqualFold(tokens[i-1], "with") {
			names[strings.ToLower(tok)] = struct{}{}
		}
		if i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "as") && i > 0 && tokens[i-1] == "," {
			names[strings.ToLower(tok)] = struct{}{}
		}
	}
	return names
}

var reservedWords = map[string]struct{}{
	"select": {}, "where": {}, "group": {}, "order": {}, "having": {},
	"on": {}, "and": {}, "or": {}, "left": {}, "right": {}, "inner": {},
	"outer": {}, "union": {}, "limit": {},
}

func isReservedWord(tok string) bool {
	_, ok := reservedWords[strings.ToLower(tok)]
	return ok
}

// tokenize splits on whitespace and a small set of punctuation,
// keeping qualified identifiers (schema.table) intact.
func tokenize(sql string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range sql {
		switch {
		case r == ' ' || r == '\n' || r == '\t' || r == '\r':
			flush()
		case r == '(' || r == ')':
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
