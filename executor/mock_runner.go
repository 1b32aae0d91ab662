package executor

import (
	"context"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockRunner is a testify mock of Runner. Calls are matched on the command
// line joined with single spaces, e.g. "wo site info example.com".
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ret := m.Called(commandLine(name, args), timeout)
	return ret.String(0), ret.Error(1)
}

func (m *MockRunner) RunCombined(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ret := m.Called(commandLine(name, args), timeout)
	return ret.String(0), ret.Error(1)
}

// OnRun expects Run with the given command line and any timeout.
func (m *MockRunner) OnRun(cmdline string) *mock.Call {
	return m.On("Run", cmdline, mock.Anything)
}

// OnRunCombined expects RunCombined with the given command line and any timeout.
func (m *MockRunner) OnRunCombined(cmdline string) *mock.Call {
	return m.On("RunCombined", cmdline, mock.Anything)
}

func commandLine(name string, args []string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
