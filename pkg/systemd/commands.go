// Package systemd builds and runs the read-only systemctl and journalctl
// queries served by unitlens.
package systemd

import "unitlens/pkg/executor/runner"

const (
	DefaultSystemctl  = "systemctl"
	DefaultJournalctl = "journalctl"
)

// Commands builds invocations for the service manager and the log query tool.
// Unit names and since values are passed through as single argument tokens.
type Commands struct {
	SystemctlPath  string
	JournalctlPath string
	// NoPager adds --no-pager to the summary listing.
	NoPager bool
}

// DefaultCommands resolves both tools via PATH and suppresses paging.
func DefaultCommands() Commands {
	return Commands{
		SystemctlPath:  DefaultSystemctl,
		JournalctlPath: DefaultJournalctl,
		NoPager:        true,
	}
}

// UnitStatus reports the status of one unit.
func (c Commands) UnitStatus(unit string) runner.Invocation {
	return runner.Invocation{
		Program: c.systemctl(),
		Args:    []string{"status", unit},
	}
}

// SystemSummary lists all units.
func (c Commands) SystemSummary() runner.Invocation {
	args := []string{}
	if c.NoPager {
		args = append(args, "--no-pager")
	}
	return runner.Invocation{
		Program: c.systemctl(),
		Args:    args,
	}
}

// UnitLogs queries the journal of one unit. An empty since means no lower bound.
func (c Commands) UnitLogs(unit, since string) runner.Invocation {
	args := []string{"--no-pager", "--unit", unit}
	if since != "" {
		args = append(args, "--since", since)
	}
	return runner.Invocation{
		Program: c.journalctl(),
		Args:    args,
	}
}

func (c Commands) systemctl() string {
	if c.SystemctlPath == "" {
		return DefaultSystemctl
	}
	return c.SystemctlPath
}

func (c Commands) journalctl() string {
	if c.JournalctlPath == "" {
		return DefaultJournalctl
	}
	return c.JournalctlPath
}
