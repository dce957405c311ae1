package discoverymigrations

import (
	"context"
	"fmt"

	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating discovery_entries table...")
		if _, err := db.NewCreateTable().Model((*discoverydb.Entry)(nil)).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create discovery_entries table: %w", err)
		}
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping discovery_entries table...")
		if _, err := db.NewDropTable().Model((*discoverydb.Entry)(nil)).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop discovery_entries table: %w", err)
		}
		return nil
	})
}
