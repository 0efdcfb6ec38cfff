package upstream

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ProjectsQueryV1 selects projects with their group and the users of every
// membership of that group.
const ProjectsQueryV1 = `query ($where: ProjectWhereFilter) {
  result: projectPage(where: $where, limit: 1000) {
    id
    name
    valid
    group {
      name
      id
      memberships {
        user {
          id
          fullname
        }
      }
    }
  }
}`

// FilterVariable is the name of the variable carrying the where filter.
const FilterVariable = "where"

// operation is a parsed query together with the envelope key its result is
// delivered under.
type operation struct {
	query     string
	resultKey string
	variables []string
}

var projectsOperation = mustCompileOperation("projects", ProjectsQueryV1)

func mustCompileOperation(name, query string) operation {
	op, err := compileOperation(name, query)
	if err != nil {
		panic(err)
	}
	return op
}

// compileOperation parses query and checks that it has a single operation
// selecting a single top-level field and declaring the filter variable.
func compileOperation(name, query string) (operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: query})
	if err != nil {
		return operation{}, fmt.Errorf("parse %s query: %w", name, err)
	}
	if len(doc.Operations) != 1 {
		return operation{}, fmt.Errorf("%s query: expected one operation, got %d", name, len(doc.Operations))
	}
	def := doc.Operations[0]
	if len(def.SelectionSet) != 1 {
		return operation{}, fmt.Errorf("%s query: expected one top-level field, got %d", name, len(def.SelectionSet))
	}
	field, ok := def.SelectionSet[0].(*ast.Field)
	if !ok {
		return operation{}, fmt.Errorf("%s query: top-level selection is not a field", name)
	}
	resultKey := field.Alias
	if resultKey == "" {
		resultKey = field.Name
	}

	op := operation{query: query, resultKey: resultKey}
	for _, variable := range def.VariableDefinitions {
		op.variables = append(op.variables, variable.Variable)
	}
	if !op.declares(FilterVariable) {
		return operation{}, fmt.Errorf("%s query: variable $%s is not declared", name, FilterVariable)
	}
	return op, nil
}

func (o operation) declares(variable string) bool {
	for _, name := range o.variables {
		if name == variable {
			return true
		}
	}
	return false
}
