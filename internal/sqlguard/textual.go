package sqlguard

import "strings"

// Write and DDL keywords. In textual mode any occurrence outside literals
// rejects the statement.
var writeKeywords = map[string]string{
	"INSERT":   "insert",
	"UPDATE":   "update",
	"DELETE":   "delete",
	"CREATE":   "create",
	"ALTER":    "alter",
	"DROP":     "drop",
	"TRUNCATE": "truncate",
	"RENAME":   "rename",
	"GRANT":    "grant",
	"REVOKE":   "revoke",
	"REPLACE":  "replace",
}

// Functions whose argument syntax uses FROM without naming a relation.
var fromArgumentFunctions = map[string]bool{
	"EXTRACT":   true,
	"SUBSTRING": true,
	"SUBSTR":    true,
	"TRIM":      true,
	"OVERLAY":   true,
	"POSITION":  true,
}

// Keywords that end a FROM list at the current nesting level.
var fromListTerminators = map[string]bool{
	"WHERE":     true,
	"GROUP":     true,
	"HAVING":    true,
	"ORDER":     true,
	"LIMIT":     true,
	"OFFSET":    true,
	"FETCH":     true,
	"UNION":     true,
	"INTERSECT": true,
	"EXCEPT":    true,
	"WINDOW":    true,
	"FOR":       true,
	"SELECT":    true,
	"RETURNING": true,
}

// checkTextual applies the conservative token-level policy to statements the
// structural parser cannot handle, such as WITH queries and dialect-specific
// syntax.
func (v *Validator) checkTextual(tokens []token) *ValidationError {
	if !tokens[0].is("SELECT") && !tokens[0].is("WITH") {
		return newError(KindParseError, "statement could not be parsed and does not start with SELECT or WITH")
	}
	for _, tok := range tokens {
		if tok.kind != tokWord {
			continue
		}
		upper := tok.upper()
		if op, ok := writeKeywords[upper]; ok {
			return operationError(op)
		}
		if upper == "INTO" {
			return operationError("select into")
		}
	}

	local := cteNames(tokens)
	names, verr := relationNames(tokens)
	if verr != nil {
		return verr
	}
	for _, name := range names {
		if local[strings.ToLower(name)] {
			continue
		}
		if err := v.checkTable(name); err != nil {
			return err
		}
	}
	return nil
}

// cteNames returns the lower-cased names declared by a leading WITH clause.
func cteNames(tokens []token) map[string]bool {
	names := make(map[string]bool)
	if len(tokens) == 0 || !tokens[0].is("WITH") {
		return names
	}
	i := 1
	if i < len(tokens) && tokens[i].is("RECURSIVE") {
		i++
	}
	for i < len(tokens) && tokens[i].isName() {
		names[strings.ToLower(tokens[i].text)] = true
		i++
		if i < len(tokens) && tokens[i].isSymbol("(") {
			i = skipParens(tokens, i)
		}
		if i < len(tokens) && tokens[i].is("AS") {
			i++
		}
		if i < len(tokens) && tokens[i].is("NOT") {
			i++
		}
		if i < len(tokens) && tokens[i].is("MATERIALIZED") {
			i++
		}
		if i >= len(tokens) || !tokens[i].isSymbol("(") {
			break
		}
		i = skipParens(tokens, i)
		if i >= len(tokens) || !tokens[i].isSymbol(",") {
			break
		}
		i++
	}
	return names
}

// skipParens returns the index just past the parenthesis group opening at i.
func skipParens(tokens []token, i int) int {
	depth := 0
	for ; i < len(tokens); i++ {
		switch {
		case tokens[i].isSymbol("("):
			depth++
		case tokens[i].isSymbol(")"):
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(tokens)
}

// relationNames lists every name that follows FROM, JOIN, or a comma inside
// a FROM list, at any nesting depth. Function calls in FROM position are
// reported under their function name. A literal or parameter in relation
// position is rejected: engines such as DuckDB read it as a file path.
func relationNames(tokens []token) ([]string, *ValidationError) {
	var names []string
	// frames holds the function name, if any, owning each open parenthesis.
	var frames []string
	inFromList := map[int]bool{}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		depth := len(frames)
		relation := false
		switch {
		case tok.isSymbol("("):
			fn := ""
			if i > 0 && tokens[i-1].kind == tokWord {
				fn = tokens[i-1].upper()
			}
			frames = append(frames, fn)
		case tok.isSymbol(")"):
			delete(inFromList, depth)
			if depth > 0 {
				frames = frames[:depth-1]
			}
		case tok.is("FROM"):
			if depth > 0 && fromArgumentFunctions[frames[depth-1]] {
				continue
			}
			if isDistinctFrom(tokens, i) {
				continue
			}
			inFromList[depth] = true
			relation = true
		case tok.is("JOIN"):
			relation = true
		case tok.isSymbol(","):
			relation = inFromList[depth]
		case tok.kind == tokWord && fromListTerminators[tok.upper()]:
			delete(inFromList, depth)
		}
		if !relation {
			continue
		}
		name, err := relationAt(tokens, i+1)
		if err != nil {
			return nil, err
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func isDistinctFrom(tokens []token, i int) bool {
	return i >= 2 && tokens[i-1].is("DISTINCT") && (tokens[i-2].is("IS") || tokens[i-2].is("NOT"))
}

// relationAt reads a possibly qualified name starting at i. It returns an
// empty name for a parenthesis, a derived table the main scan walks on its
// own, and at the end of input.
func relationAt(tokens []token, i int) (string, *ValidationError) {
	for i < len(tokens) && (tokens[i].is("LATERAL") || tokens[i].is("ONLY")) {
		i++
	}
	if i >= len(tokens) || tokens[i].isSymbol("(") {
		return "", nil
	}
	if !tokens[i].isName() {
		return "", tableError(tokens[i].text)
	}
	parts := []string{tokens[i].text}
	for i+2 < len(tokens) && tokens[i+1].isSymbol(".") && tokens[i+2].isName() {
		parts = append(parts, tokens[i+2].text)
		i += 2
	}
	return strings.Join(parts, "."), nil
}

// hasTopLevelLimit reports a LIMIT or FETCH clause outside any parentheses.
func hasTopLevelLimit(tokens []token) bool {
	depth := 0
	for _, tok := range tokens {
		switch {
		case tok.isSymbol("("):
			depth++
		case tok.isSymbol(")"):
			depth--
		case depth == 0 && (tok.is("LIMIT") || tok.is("FETCH")):
			return true
		}
	}
	return false
}
