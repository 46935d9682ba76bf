package expressions

// Checker compile-checks an expression without evaluating it. vars names the
// identifiers the expression may reference (the task's inputParameters keys).
type Checker interface {
	Name() string
	Check(expression string, vars []string) error
}

// Checkers routes an evaluatorType to its Checker. Evaluator types with no
// registered Checker (javascript, graaljs, value-param) are not checked.
type Checkers struct {
	byType map[string]Checker
}

// NewCheckers builds the default set: cel and expr.
func NewCheckers() (*Checkers, error) {
	celChecker, err := NewCELChecker()
	if err != nil {
		return nil, err
	}
	c := &Checkers{byType: make(map[string]Checker)}
	c.Register(celChecker)
	c.Register(NewExprChecker())
	return c, nil
}

// Register adds or replaces the checker for its Name().
func (c *Checkers) Register(ch Checker) {
	c.byType[ch.Name()] = ch
}

// Check runs the checker registered for evaluatorType. It returns
// (false, nil) when no checker applies.
func (c *Checkers) Check(evaluatorType, expression string, vars []string) (bool, error) {
	if c == nil {
		return false, nil
	}
	ch, ok := c.byType[evaluatorType]
	if !ok {
		return false, nil
	}
	return true, ch.Check(expression, vars)
}
