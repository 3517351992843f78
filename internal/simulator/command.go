package simulator

import (
	"os/exec"
)

// Command is one prepared simulator invocation.
type Command interface {
	// Run starts the process and blocks until it exits.
	Run() error
}

// CommandBuilder builds Commands. This abstraction enables unit testing of
// argument construction without spawning the simulator.
type CommandBuilder interface {
	BuildCommand(name string, args ...string) Command
}

// ExecCommandBuilder builds commands backed by os/exec. Stdout and stderr
// are left nil so the child writes to the null device.
type ExecCommandBuilder struct{}

// BuildCommand creates an exec-backed Command.
func (ExecCommandBuilder) BuildCommand(name string, args ...string) Command {
	return exec.Command(name, args...)
}

// MockCommand implements Command for testing.
type MockCommand struct {
	// Err is returned from Run.
	Err error
	// OnRun, if set, runs before Run returns (e.g. to write an artifact).
	OnRun func()
	// RunCalled indicates whether Run was called.
	RunCalled bool
}

// Run returns the configured error.
func (m *MockCommand) Run() error {
	m.RunCalled = true
	if m.OnRun != nil {
		m.OnRun()
	}
	return m.Err
}

// BuiltCommand records details of a built command.
type BuiltCommand struct {
	Name string
	Args []string
}

// MockCommandBuilder implements CommandBuilder for testing.
type MockCommandBuilder struct {
	// Commands records all commands that were built.
	Commands []BuiltCommand
	// Factory creates the command to return; nil returns a succeeding MockCommand.
	Factory func(name string, args []string) *MockCommand
}

// BuildCommand records the command and returns a MockCommand.
func (b *MockCommandBuilder) BuildCommand(name string, args ...string) Command {
	b.Commands = append(b.Commands, BuiltCommand{Name: name, Args: args})
	if b.Factory != nil {
		return b.Factory(name, args)
	}
	return &MockCommand{}
}

// LastCommand returns the most recently built command, or nil if none.
func (b *MockCommandBuilder) LastCommand() *BuiltCommand {
	if len(b.Commands) == 0 {
		return nil
	}
	return &b.Commands[len(b.Commands)-1]
}
