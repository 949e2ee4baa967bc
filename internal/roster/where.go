package roster

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"roster/internal/student"
)

var ErrBadExpression = errors.New("roster: bad filter expression")

// Predicate is a compiled filter expression such as
// `status == "Active" && course startsWith "CS"`.
type Predicate struct {
	source  string
	program *vm.Program
}

func exprEnv(r student.Record) map[string]any {
	return map[string]any{
		"id":        r.ID,
		"name":      r.Name,
		"email":     r.Email,
		"course":    r.Course,
		"status":    r.Status,
		"createdAt": r.CreatedAt.String(),
		"updatedAt": r.UpdatedAt.String(),
	}
}

// CompileWhere type-checks src against the record fields.
func CompileWhere(src string) (*Predicate, error) {
	program, err := expr.Compile(src, expr.Env(exprEnv(student.Record{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadExpression, err)
	}
	return &Predicate{source: src, program: program}, nil
}

// Match evaluates the predicate for r.
func (p *Predicate) Match(r student.Record) (bool, error) {
	out, err := expr.Run(p.program, exprEnv(r))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBadExpression, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

func (p *Predicate) String() string { return p.source }

// Where keeps records matching p. A nil predicate keeps everything.
func Where(list []student.Record, p *Predicate) ([]student.Record, error) {
	if p == nil {
		return list, nil
	}
	out := make([]student.Record, 0, len(list))
	for _, r := range list {
		ok, err := p.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}
