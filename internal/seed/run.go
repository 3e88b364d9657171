package seed

import (
	"context"
	"fmt"
)

// Run is the entry point the CLI glue calls: load and validate the seed
// spec file, connect the configured driver, and drive the plan to
// completion. reset selects reset mode.
func Run(ctx context.Context, log Logger, specPath string, reset bool) error {
	plan, err := LoadPlan(specPath)
	if err != nil {
		return err
	}

	dsn, err := ResolveDSN(plan.Database)
	if err != nil {
		return err
	}

	driver, err := Open(ctx, plan.Database.Driver, dsn)
	if err != nil {
		return fmt.Errorf("seed: connect %s: %w", plan.Database.Driver, err)
	}
	defer func() {
		if closeErr := driver.Close(); closeErr != nil {
			log.Warn("closing driver", "error", closeErr.Error())
		}
	}()

	log.Info("seeding database", "driver", driver.DriverName(), "spec", specPath)
	return NewExecutor(driver, log, reset).Execute(ctx, plan)
}
