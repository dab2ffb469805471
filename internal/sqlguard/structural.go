package sqlguard

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// checkStructural classifies a parsed statement and checks every relation it
// references. It reports whether the outermost query carries a LIMIT.
func (v *Validator) checkStructural(stmt sqlparser.Statement) (bool, *ValidationError) {
	var hasLimit bool
	switch node := stmt.(type) {
	case *sqlparser.Select:
		if strings.TrimSpace(node.Lock) != "" {
			return false, operationError("select" + strings.ToLower(node.Lock))
		}
		hasLimit = node.Limit != nil
	case *sqlparser.Union:
		hasLimit = node.Limit != nil
	case *sqlparser.ParenSelect:
		hasLimit = selectHasLimit(node.Select)
	case *sqlparser.Insert:
		return false, operationError(node.Action)
	case *sqlparser.Update:
		return false, operationError("update")
	case *sqlparser.Delete:
		return false, operationError("delete")
	case *sqlparser.DDL:
		return false, operationError(node.Action)
	default:
		return false, notSelectError()
	}

	names, err := tableNames(stmt)
	if err != nil {
		return false, &ValidationError{Kind: KindParseError, Message: "unsupported table expression", Err: err}
	}
	for _, name := range names {
		// The grammar fills an omitted FROM with dual.
		if strings.EqualFold(name, "dual") {
			continue
		}
		if verr := v.checkTable(name); verr != nil {
			return false, verr
		}
	}
	return hasLimit, nil
}

func selectHasLimit(stmt sqlparser.SelectStatement) bool {
	switch node := stmt.(type) {
	case *sqlparser.Select:
		return node.Limit != nil
	case *sqlparser.Union:
		return node.Limit != nil
	case *sqlparser.ParenSelect:
		return selectHasLimit(node.Select)
	default:
		return false
	}
}

// tableNames walks the tree and returns every base relation it references,
// including those inside subqueries and joins.
func tableNames(stmt sqlparser.Statement) ([]string, error) {
	var names []string
	err := sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		aliased, ok := node.(*sqlparser.AliasedTableExpr)
		if !ok {
			return true, nil
		}
		switch expr := aliased.Expr.(type) {
		case sqlparser.TableName:
			names = append(names, qualifiedName(expr))
		case *sqlparser.Subquery:
		default:
			return false, fmt.Errorf("table expression %T", expr)
		}
		return true, nil
	}, stmt)
	return names, err
}

func qualifiedName(name sqlparser.TableName) string {
	if name.Qualifier.IsEmpty() {
		return name.Name.String()
	}
	return name.Qualifier.String() + "." + name.Name.String()
}
