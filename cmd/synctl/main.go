// synctl is the operator CLI for the local sync data: inspect collections,
// resolve offline credentials, seed demo data and perform the administrative
// tier reset.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"storefront-sync-layer/internal/application"
	"storefront-sync-layer/internal/domain"
	"storefront-sync-layer/internal/infrastructure/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var dataDir string

func openContext(logger zerolog.Logger) (*application.SyncManager, *storage.FileTier, error) {
	durable, err := storage.NewFileTier(dataDir)
	if err != nil {
		return nil, nil, err
	}
	syncMgr, err := application.NewSyncManager(context.Background(), application.SyncManagerConfig{
		ContextID: "synctl",
		Durable:   durable,
		Volatile:  storage.NewMemoryTier(),
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return syncMgr, durable, nil
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "synctl",
		Short: "Inspect and manage local storefront sync data",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "durable tier directory")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show collection counts and the current resolved identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncMgr, durable, err := openContext(logger)
			if err != nil {
				return err
			}
			for _, typ := range domain.EntityTypes {
				fmt.Printf("%-10s %d\n", typ, len(syncMgr.GetWithFallback(typ)))
			}
			resolver := application.NewIdentityResolver(durable, nil, logger)
			if identity := resolver.Current(); identity != nil {
				fmt.Printf("identity   %s (%s, %s)\n", identity.Email, identity.Role, identity.ID)
			} else {
				fmt.Println("identity   none")
			}
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the entire durable tier (administrative reset)",
		RunE: func(cmd *cobra.Command, args []string) error {
			durable, err := storage.NewFileTier(dataDir)
			if err != nil {
				return err
			}
			if err := durable.Clear(); err != nil {
				return fmt.Errorf("failed to reset durable tier: %w", err)
			}
			fmt.Println("durable tier cleared")
			return nil
		},
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <email> <password>",
		Short: "Resolve credentials through the offline identity resolver",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			durable, err := storage.NewFileTier(dataDir)
			if err != nil {
				return err
			}
			resolver := application.NewIdentityResolver(durable, nil, logger)
			identity, err := resolver.Resolve(args[0], args[1])
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(identity, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed <subdomain>",
		Short: "Create a demo store with one product and one category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncMgr, durable, err := openContext(logger)
			if err != nil {
				return err
			}
			resolver := application.NewIdentityResolver(durable, nil, logger)
			owner, err := resolver.Resolve(args[0]+"-shop@storefront.local", "seed")
			if err != nil {
				return err
			}
			store := application.NewEntityStore(syncMgr, logger)
			ctx := context.Background()

			shop, err := store.Create(ctx, domain.EntityStore, map[string]any{
				"subdomain": args[0],
				"ownerId":   owner.ID,
				"name":      args[0] + " store",
			})
			if err != nil {
				return err
			}
			if _, err := store.Create(ctx, domain.EntityCategory, map[string]any{
				"storeId": shop.ID,
				"name":    "General",
			}); err != nil {
				return err
			}
			if _, err := store.Create(ctx, domain.EntityProduct, map[string]any{
				"storeId": shop.ID,
				"name":    "Sample product",
				"price":   10.0,
				"stock":   5,
			}); err != nil {
				return err
			}
			fmt.Printf("seeded store %s (%s)\n", args[0], shop.ID)
			return nil
		},
	}

	rootCmd.AddCommand(statusCmd, resetCmd, resolveCmd, seedCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
