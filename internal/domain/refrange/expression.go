package refrange

import (
	"errors"
	"fmt"
	"sync"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

var errNotBool = errors.New("expression did not evaluate to a bool")

// programCache keeps compiled row expressions keyed by source.
type programCache struct {
	mu       sync.RWMutex
	programs map[string]*exprvm.Program
}

func newProgramCache() *programCache {
	return &programCache{programs: make(map[string]*exprvm.Program)}
}

func (c *programCache) loadOrCompile(expression string) (*exprvm.Program, error) {
	c.mu.RLock()
	p, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}
	p, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile row expression %q: %w", expression, err)
	}
	c.mu.Lock()
	c.programs[expression] = p
	c.mu.Unlock()
	return p, nil
}

// environment exposes the sample to row expressions. age_days is nil when the
// age cannot be computed.
func environment(patient PatientContext, sample SampleContext) map[string]any {
	sex, _ := NormalizeSex(patient.Sex)
	env := map[string]any{
		"age_days":        nil,
		"sex":             string(sex),
		"keyword":         sample.ServiceKeyword,
		"sample_type_uid": sample.SampleTypeUID,
		"method_uid":      sample.MethodUID,
		"client_uid":      sample.ClientUID,
	}
	if days, ok := ageDays(patient, sample); ok {
		env["age_days"] = days
	}
	return env
}

func (c *programCache) eval(expression string, patient PatientContext, sample SampleContext) (bool, error) {
	p, err := c.loadOrCompile(expression)
	if err != nil {
		return false, err
	}
	out, err := exprlang.Run(p, environment(patient, sample))
	if err != nil {
		return false, fmt.Errorf("run row expression %q: %w", expression, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, errNotBool
	}
	return b, nil
}
