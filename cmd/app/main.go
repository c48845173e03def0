package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sqliteadapter "github.com/atvirokodosprendimai/habittrack/internal/adapters/db/sqlite"
	httpadapter "github.com/atvirokodosprendimai/habittrack/internal/adapters/http"
	rpcadapter "github.com/atvirokodosprendimai/habittrack/internal/adapters/rpcjson"
	"github.com/atvirokodosprendimai/habittrack/internal/application"
	"github.com/atvirokodosprendimai/habittrack/internal/domain"
	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "habittrack",
		Usage: "Habit tracking server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			configCommand(),
			habitsCommand(),
			eventsCommand(),
			statusCommand(),
			analyticsCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, ":8080", "/tmp/habittrack.sock", "habittrack.db")
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Value: "/tmp/habittrack.sock", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Value: "habittrack.db", Usage: "SQLite database path"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx, c.String("addr"), c.String("rpc-socket"), c.String("db-path"))
		},
	}
}

func runServer(ctx context.Context, addr, rpcSocket, dbPath string) error {
	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	repo := sqliteadapter.NewHabitRepository(db)
	service := application.NewHabitService(repo)

	router := httpadapter.NewRouter(service)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(rpcSocket, service)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Printf("json-rpc listening on unix://%s", rpcSocket)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI connection settings",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Store transport settings for subsequent commands",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds", Usage: "uds or http"},
					&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
					&cli.StringFlag{Name: "socket", Value: "/tmp/habittrack.sock"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{
						Transport: c.String("transport"),
						Server:    c.String("server"),
						Socket:    c.String("socket"),
					}
					if cfg.Transport != "uds" && cfg.Transport != "http" {
						return fmt.Errorf("transport must be uds or http, got %q", cfg.Transport)
					}
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("config saved")
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Show effective CLI settings",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					printKV([][2]string{
						{"transport", cfg.Transport},
						{"server", cfg.Server},
						{"socket", cfg.Socket},
					})
					return nil
				},
			},
		},
	}
}

func habitsCommand() *cli.Command {
	return &cli.Command{
		Name:  "habits",
		Usage: "Habit registry commands",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a habit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Habit
					if err := doHabitsCreate(ctx, cfg, c.String("name"), c.String("description"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printHabit(out)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List habits",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "include archived habits"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Habit
					if err := doHabitsList(ctx, cfg, c.Bool("all"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printHabits(out)
					return nil
				},
			},
			{
				Name:  "archived",
				Usage: "List archived habits",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Habit
					if err := doHabitsArchivedList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printHabits(out)
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Show one habit",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Habit
					if err := doHabitsGet(ctx, cfg, uint(c.Uint("id")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printHabit(out)
					return nil
				},
			},
			{
				Name:  "update",
				Usage: "Rename a habit or change its description",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "description"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var name, description *string
					if c.IsSet("name") {
						v := c.String("name")
						name = &v
					}
					if c.IsSet("description") {
						v := c.String("description")
						description = &v
					}
					var out domain.Habit
					if err := doHabitsUpdate(ctx, cfg, uint(c.Uint("id")), name, description, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printHabit(out)
					return nil
				},
			},
			{
				Name:  "archive",
				Usage: "Archive a habit, keeping its history",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Habit
					if err := doHabitsArchive(ctx, cfg, uint(c.Uint("id")), &out); err != nil {
						return err
					}
					fmt.Printf("archived habit %d (%s)\n", out.ID, out.Name)
					return nil
				},
			},
			{
				Name:  "unarchive",
				Usage: "Return an archived habit to active tracking",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Habit
					if err := doHabitsUnarchive(ctx, cfg, uint(c.Uint("id")), &out); err != nil {
						return err
					}
					fmt.Printf("unarchived habit %d (%s)\n", out.ID, out.Name)
					return nil
				},
			},
			{
				Name:  "delete",
				Usage: "Permanently delete a habit and its history",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doHabitsDelete(ctx, cfg, uint(c.Uint("id"))); err != nil {
						return err
					}
					fmt.Println("deleted")
					return nil
				},
			},
			{
				Name:  "history",
				Usage: "Show a habit's daily completions and skips",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "day", Usage: "single day (YYYY-MM-DD) instead of the full history"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if day := c.String("day"); day != "" {
						var out domain.DailyAggregate
						if err := doAggregateForDay(ctx, cfg, uint(c.Uint("id")), day, &out); err != nil {
							return err
						}
						if c.Bool("json") {
							return printJSON(out)
						}
						printAggregates([]domain.DailyAggregate{out})
						return nil
					}
					var out []domain.DailyAggregate
					if err := doAggregatesList(ctx, cfg, uint(c.Uint("id")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAggregates(out)
					return nil
				},
			},
			{
				Name:  "rebuild",
				Usage: "Recompute daily aggregates from the event log",
				Flags: []cli.Flag{&cli.UintFlag{Name: "id", Required: true}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doHabitsRebuild(ctx, cfg, uint(c.Uint("id"))); err != nil {
						return err
					}
					fmt.Println("aggregates rebuilt")
					return nil
				},
			},
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Event log commands",
		Commands: []*cli.Command{
			{
				Name:  "log",
				Usage: "Record a completion or skip",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "habit-id", Required: true},
					&cli.StringFlag{Name: "type", Value: domain.EventComplete, Usage: "complete or skip"},
					&cli.StringFlag{Name: "at", Usage: "RFC 3339 timestamp, defaults to now"},
					&cli.StringFlag{Name: "source", Value: "cli"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var at *time.Time
					if raw := c.String("at"); raw != "" {
						parsed, err := time.Parse(time.RFC3339, raw)
						if err != nil {
							return fmt.Errorf("invalid --at value: %w", err)
						}
						at = &parsed
					}
					var out domain.Event
					if err := doEventsLog(ctx, cfg, uint(c.Uint("habit-id")), c.String("type"), at, c.String("source"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printEvent(out)
					return nil
				},
			},
			{
				Name:  "undo",
				Usage: "Undo the most recent event inside the undo window",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "habit-id", Usage: "limit the undo to one habit"},
					&cli.IntFlag{Name: "within", Value: 60, Usage: "undo window in seconds"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var habitID *uint
					if c.IsSet("habit-id") {
						v := uint(c.Uint("habit-id"))
						habitID = &v
					}
					var out domain.Event
					if err := doEventsUndo(ctx, cfg, habitID, int(c.Int("within")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printEvent(out)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List a habit's events",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "habit-id", Required: true},
					&cli.BoolFlag{Name: "all", Usage: "include undone events"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Event
					if err := doEventsList(ctx, cfg, uint(c.Uint("habit-id")), c.Bool("all"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printEvents(out)
					return nil
				},
			},
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Day status commands",
		Commands: []*cli.Command{
			{
				Name:  "today",
				Usage: "Show today's status for one habit or all habits",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "habit-id"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if c.IsSet("habit-id") {
						var out domain.TodayStatus
						if err := doStatusToday(ctx, cfg, uint(c.Uint("habit-id")), &out); err != nil {
							return err
						}
						if c.Bool("json") {
							return printJSON(out)
						}
						printStatus(out)
						return nil
					}
					var out map[string]domain.TodayStatus
					if err := doStatusAll(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printStatusAll(out)
					return nil
				},
			},
		},
	}
}

func analyticsCommand() *cli.Command {
	return &cli.Command{
		Name:  "analytics",
		Usage: "Streaks, rates and trends",
		Commands: []*cli.Command{
			{
				Name:  "habit",
				Usage: "Show analytics for one habit",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.HabitAnalytics
					if err := doAnalyticsHabit(ctx, cfg, uint(c.Uint("id")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAnalytics(out)
					return nil
				},
			},
			{
				Name:  "summary",
				Usage: "Show the system-wide summary report",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.SummaryReport
					if err := doAnalyticsSummary(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printSummary(out)
					return nil
				},
			},
		},
	}
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
