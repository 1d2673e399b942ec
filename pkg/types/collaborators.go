package types

import "context"

// TestResult is the tri-state answer of a validation run.
type TestResult int

const (
	TestPass TestResult = iota
	TestFail
	TestNoTests
)

func (r TestResult) String() string {
	switch r {
	case TestPass:
		return "PASS"
	case TestFail:
		return "FAIL"
	case TestNoTests:
		return "NO_TESTS"
	default:
		return "UNKNOWN"
	}
}

// Accepted reports whether the result lets the change be committed.
// NO_TESTS counts as a pass.
func (r TestResult) Accepted() bool {
	return r == TestPass || r == TestNoTests
}

// TestRunner validates a project after a patch has been applied.
type TestRunner interface {
	// Run validates the project rooted at projectRoot. Any failure to run
	// the validation at all is reported as TestFail.
	Run(ctx context.Context, projectRoot string) TestResult
}

// Formatter normalizes the style of a mutated file. Its failure never
// changes the outcome of an item.
type Formatter interface {
	Format(ctx context.Context, targetPath string) error
}

// Recorder persists outcomes. The worker treats it as best effort.
type Recorder interface {
	Record(o Outcome) error
}
