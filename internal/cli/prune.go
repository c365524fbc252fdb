package cli

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	e, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	if e.store == nil {
		return errors.New("history database is unavailable")
	}

	retention := time.Duration(e.cfg.History.RetentionDays) * 24 * time.Hour
	if c.OlderThan != "" {
		retention, err = parseDuration(c.OlderThan)
		if err != nil {
			return err
		}
	}
	if retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}

	cutoff := e.clock.Now().Add(-retention)
	n, err := e.store.PruneBefore(context.Background(), cutoff)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	fmt.Printf("Pruned %d history rows older than %s.\n", n, formatDurationHuman(retention))
	return nil
}
