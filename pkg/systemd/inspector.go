package systemd

import (
	"context"

	"unitlens/pkg/executor/runner"
)

// Inspector answers the three read-only queries by running one command each.
type Inspector struct {
	commands Commands
	runner   runner.Runner
}

// NewInspector wires a command builder to a runner.
func NewInspector(commands Commands, r runner.Runner) *Inspector {
	return &Inspector{commands: commands, runner: r}
}

// UnitStatus returns `systemctl status <unit>` output.
func (i *Inspector) UnitStatus(ctx context.Context, unit string) (string, error) {
	return i.runner.Run(ctx, i.commands.UnitStatus(unit))
}

// SystemSummary returns the full unit listing.
func (i *Inspector) SystemSummary(ctx context.Context) (string, error) {
	return i.runner.Run(ctx, i.commands.SystemSummary())
}

// UnitLogs returns the journal for unit, bounded below by since when non-empty.
func (i *Inspector) UnitLogs(ctx context.Context, unit, since string) (string, error) {
	return i.runner.Run(ctx, i.commands.UnitLogs(unit, since))
}
