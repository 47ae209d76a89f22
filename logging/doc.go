// Package logging defines the minimal Logger interface used across
// campaignmesh and ships adapters for log/slog and zerolog.
//
// Messages are dotted event names followed by key/value pairs:
//
//	logger.Info("agent.run.start", "agent", "EmailExpert", "branch", "Root.Group.EmailExpert")
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Backend: "zerolog", Level: "debug"})
//	if err != nil {
//		return err
//	}
package logging
