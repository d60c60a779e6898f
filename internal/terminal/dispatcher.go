// Package terminal implements the crew text terminal. Every submitted line is
// answered and recorded in the command log.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"habitat/internal/crew"
	"habitat/internal/habitat"
	"habitat/internal/metrics"
	"habitat/internal/model"
)

const (
	msgLoginUsage     = "Usage: login [username]"
	msgUserNotFound   = "User not found"
	msgNotLoggedIn    = "Not logged in"
	msgLoginRequired  = "Access denied. Login required."
	msgAdminRequired  = "Access denied. Admin privilege required."
	msgSetUsage       = "Invalid syntax. Usage: set [parameter] [value]"
	msgAnalytics      = "Analytics: All systems within acceptable parameters. Crew wellness stable."
	msgAccessDenied   = "Access denied."
	msgLoggedOut      = "Logged out"
	msgUnknownCommand = "Unknown command. Type \"help\" for available commands."
	msgNoTelemetry    = "no telemetry yet"
)

const helpText = `Available commands:
login [username] - Logs in as a crew member
whoami - Displays current logged-in user
oxygen, temperature, food, power, sleep, wellness - Shows live metric data
set [parameter] [value] - Adjusts simulated parameter (requires admin privilege)
analytics - Displays simulated analytics summary (requires research privilege)
logout - Logs out of current session
alerts - Lists all current system alerts
users - Lists crew roles and privileges
help - Shows this help message`

// Snapshots exposes the most recent evaluated tick.
type Snapshots interface {
	Latest() (metrics.Snapshot, bool)
}

type Dispatcher struct {
	hab       *habitat.Habitat
	snapshots Snapshots
	metrics   *metrics.Collectors
	logger    *slog.Logger
}

func NewDispatcher(hab *habitat.Habitat, snapshots Snapshots, collectors *metrics.Collectors, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{hab: hab, snapshots: snapshots, metrics: collectors, logger: logger}
}

// Execute answers one command line and appends it to the command log.
func (d *Dispatcher) Execute(ctx context.Context, line string) string {
	parts := strings.Fields(line)
	cmd := ""
	if len(parts) > 0 {
		cmd = strings.ToLower(parts[0])
	}
	response, known := d.respond(ctx, cmd, parts)
	d.hab.RecordCommand(ctx, line, response)
	if known {
		d.metrics.CommandExecuted(cmd)
	} else {
		d.metrics.CommandExecuted("unknown")
	}
	if d.logger != nil {
		d.logger.Debug("terminal command", "command", cmd, "user", d.hab.Actor())
	}
	return response
}

func (d *Dispatcher) respond(ctx context.Context, cmd string, parts []string) (string, bool) {
	switch cmd {
	case "login":
		return d.login(ctx, parts), true
	case "whoami":
		if m, ok := d.hab.CurrentUser(); ok {
			return fmt.Sprintf("%s (%s)", m.Name, m.Role), true
		}
		return msgNotLoggedIn, true
	case "oxygen", "temperature", "food", "power", "sleep", "wellness":
		if _, err := d.hab.Require(model.PrivilegeRead); err != nil {
			return msgLoginRequired, true
		}
		return d.reading(cmd), true
	case "set":
		return d.set(parts), true
	case "analytics":
		if _, err := d.hab.Require(model.PrivilegeResearch); err != nil {
			return msgAccessDenied, true
		}
		return msgAnalytics, true
	case "logout":
		d.hab.Logout(ctx)
		return msgLoggedOut, true
	case "alerts":
		return d.alerts(), true
	case "users":
		return d.users(), true
	case "help":
		return helpText, true
	default:
		return msgUnknownCommand, false
	}
}

func (d *Dispatcher) login(ctx context.Context, parts []string) string {
	if len(parts) < 2 {
		return msgLoginUsage
	}
	m, err := d.hab.Login(ctx, parts[1])
	if errors.Is(err, crew.ErrNotFound) {
		return msgUserNotFound
	}
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("terminal login failed", "err", err)
		}
		return msgUserNotFound
	}
	return fmt.Sprintf("Logged in as %s (%s)", m.Name, m.Role)
}

func (d *Dispatcher) set(parts []string) string {
	_, err := d.hab.Require(model.PrivilegeAdmin)
	switch {
	case errors.Is(err, habitat.ErrNotLoggedIn):
		return msgLoginRequired
	case errors.Is(err, habitat.ErrForbidden):
		return msgAdminRequired
	case len(parts) < 3:
		return msgSetUsage
	}
	return fmt.Sprintf("Set %s to %s (simulated)", parts[1], parts[2])
}

func (d *Dispatcher) reading(cmd string) string {
	label := strings.ToUpper(cmd)
	if cmd == "wellness" {
		return label + ": See radar chart"
	}
	snap, ok := d.latest()
	if !ok {
		return label + ": " + msgNoTelemetry
	}
	s := snap.Sample
	switch cmd {
	case "oxygen":
		return fmt.Sprintf("%s: %.1f%%", label, s.Oxygen)
	case "temperature":
		return fmt.Sprintf("%s: %.1f°C", label, s.Temperature)
	case "food":
		return fmt.Sprintf("%s: %.1f%%", label, s.Food)
	case "power":
		return fmt.Sprintf("%s: %.1f%% used", label, s.PowerUsed)
	default:
		return fmt.Sprintf("%s: %.1fh", label, s.Sleep)
	}
}

func (d *Dispatcher) alerts() string {
	snap, ok := d.latest()
	if !ok {
		return msgNoTelemetry
	}
	lines := make([]string, 0, len(snap.Alerts))
	for _, a := range snap.Alerts {
		lines = append(lines, a.Message)
	}
	return strings.Join(lines, "\n")
}

func (d *Dispatcher) users() string {
	members := d.hab.Crew.List()
	lines := make([]string, 0, len(members))
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("%s - %s (%s)", m.Name, m.Role, crew.FormatPrivileges(m.Privileges)))
	}
	return strings.Join(lines, "\n")
}

func (d *Dispatcher) latest() (metrics.Snapshot, bool) {
	if d.snapshots == nil {
		return metrics.Snapshot{}, false
	}
	return d.snapshots.Latest()
}
