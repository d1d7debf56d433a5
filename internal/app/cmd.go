package app

// Command selects the startup mode.
type Command string

const (
	// CommandServe starts the API server with the in-process sweeper.
	CommandServe Command = "serve"
	// CommandMigrate applies the pending database migrations.
	CommandMigrate Command = "migrate"
	// CommandHealthcheck probes the local /health endpoint. Used as the
	// Docker healthcheck in distroless images.
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand reads the subcommand from the argument list. Empty or unknown
// arguments fall back to serve.
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
