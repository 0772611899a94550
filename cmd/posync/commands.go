package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/fekuna/omnipos-sync/config"
	"github.com/fekuna/omnipos-sync/internal/database/sqlite"
	"github.com/fekuna/omnipos-sync/internal/model"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/fekuna/omnipos-sync/internal/worker/handler"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show outbox counters and pull watermarks from the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.outbox.Stats(ctx)
			if err != nil {
				return err
			}
			products, err := a.products.CountProducts(ctx)
			if err != nil {
				return err
			}
			imported, err := a.settings.InitialImportDone(ctx)
			if err != nil {
				return err
			}

			bold := color.New(color.Bold)
			bold.Printf("Device    ")
			fmt.Println(a.dc.DeviceID)
			bold.Printf("Remote    ")
			if a.cfg.Remote.URL == "" {
				color.Yellow("not configured")
			} else {
				fmt.Println(a.cfg.Remote.URL)
			}
			bold.Printf("Products  ")
			fmt.Printf("%d (initial import done: %v)\n", products, imported)

			fmt.Println()
			bold.Println("Outbox")
			types := make([]string, 0, len(stats.PendingByType))
			for t := range stats.PendingByType {
				types = append(types, string(t))
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Printf("  %-14s %d pending\n", t, stats.PendingByType[model.OpType(t)])
			}
			printCount("  pending", stats.TotalPending, color.FgGreen)
			printCount("  sent", stats.Sent, color.FgCyan)
			printCount("  errors", stats.Errors, color.FgYellow)
			printCount("  at retry cap", stats.ErrorsAtCap, color.FgRed)
			printCount("  unsynced moves", stats.StockMovesPending, color.FgGreen)
			if stats.LastAckedAt != nil {
				fmt.Printf("  %-14s %s\n", "last ack", stats.LastAckedAt.Format(time.RFC3339))
			}

			fmt.Println()
			bold.Println("Watermarks")
			for _, entity := range remote.PullOrder {
				at, err := a.settings.Watermark(ctx, entity)
				if err != nil {
					return err
				}
				if at.Unix() <= 0 {
					fmt.Printf("  %-14s %s\n", entity, color.HiBlackString("never"))
					continue
				}
				fmt.Printf("  %-14s %s\n", entity, at.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func printCount(label string, n int, attr color.Attribute) {
	value := fmt.Sprint(n)
	if n > 0 {
		value = color.New(attr).Sprint(n)
	}
	fmt.Printf("%-16s %s\n", label, value)
}

func newRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [op_id...]",
		Short: "Requeue rejected operations; listed ids are requeued past the retry cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			retried, err := a.outbox.RetryErrorOperations(ctx)
			if err != nil {
				return err
			}
			requeued, err := a.outbox.Requeue(ctx, args)
			if err != nil {
				return err
			}
			color.Green("%d retried, %d requeued", retried, requeued)
			return nil
		},
	}
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle now and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.outbox.RecoverInFlight(ctx); err != nil {
				return err
			}
			report, err := a.worker.RunCycle(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.Errors) > 0 {
				return fmt.Errorf("sync cycle finished with %d errors", len(report.Errors))
			}
			return nil
		},
	}
}

func newTriggerCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Ask a running daemon to start a cycle and print its stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			client := handler.NewSyncAdminClient(conn)
			if _, err := client.Trigger(ctx); err != nil {
				return err
			}
			stats, err := client.GetStats(ctx)
			if err != nil {
				return err
			}
			out, err := protojson.MarshalOptions{Multiline: true}.Marshal(stats)
			if err != nil {
				return err
			}
			color.Green("cycle triggered")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8082", "gRPC address of the running daemon")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := sqlite.NewSQLite(&sqlite.Config{Path: cfg.SQLite.Path, BusyTimeoutMS: cfg.SQLite.BusyTimeoutMS})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqlite.Migrate(db); err != nil {
				return err
			}
			m, err := sqlite.NewMigrator(db)
			if err != nil {
				return err
			}
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			color.Green("schema at version %d (dirty: %v)", version, dirty)
			return nil
		},
	}
}
