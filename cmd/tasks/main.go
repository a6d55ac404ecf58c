// Command tasks is a terminal client for the shared task list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"shared-tasks/internal/client"
	"shared-tasks/internal/config"
	"shared-tasks/internal/models"
	"shared-tasks/internal/service"
	"shared-tasks/internal/view"
	"shared-tasks/pkg/logger"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Get()
	// stdout belongs to the task list; diagnostics go to stderr at warn unless debugging
	level := "warn"
	if cfg.LogLevel == "debug" {
		level = "debug"
	}
	logger.SetupTo(os.Stderr, level, "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], cfg.APIURL, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "tasks:", err)
		if client.IsAPIError(err) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string, defaultAPI string, out io.Writer) error {
	fs := flag.NewFlagSet("tasks", flag.ContinueOnError)
	fs.SetOutput(out)
	api := fs.String("api", defaultAPI, "base URL of the task API")
	fs.Usage = func() { printHelp(out) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		printHelp(out)
		return nil
	}
	c := client.New(*api)
	return processCommand(ctx, c, fs.Arg(0), fs.Args()[1:], out)
}

func processCommand(ctx context.Context, c *client.Client, command string, args []string, out io.Writer) error {
	switch command {
	case "ls", "list":
		fs, filter, search := listFlags(command, out)
		if err := fs.Parse(args); err != nil {
			return err
		}
		f, err := view.ParseFilter(*filter)
		if err != nil {
			return err
		}
		tasks, err := c.List(ctx)
		if err != nil {
			return err
		}
		render(out, view.Visible(tasks, *search, f))
		return nil

	case "add":
		title, err := service.ValidateTitle(strings.Join(args, " "))
		if err != nil {
			return err
		}
		t, err := c.Create(ctx, title)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "added %d\n", t.ID)
		return nil

	case "done", "undo":
		if len(args) != 1 {
			return fmt.Errorf("usage: tasks %s <id>", command)
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		completed := command == "done"
		t, err := c.Update(ctx, id, models.TaskPatch{Completed: &completed})
		if err != nil {
			return err
		}
		renderTask(out, t)
		return nil

	case "rename":
		if len(args) < 2 {
			return errors.New("usage: tasks rename <id> <title...>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		title, err := service.ValidateTitle(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		t, err := c.Update(ctx, id, models.TaskPatch{Title: &title})
		if err != nil {
			return err
		}
		renderTask(out, t)
		return nil

	case "rm":
		if len(args) != 1 {
			return errors.New("usage: tasks rm <id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		t, err := c.Delete(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "removed %d %q\n", t.ID, t.Title)
		return nil

	case "watch":
		fs, filter, search := listFlags(command, out)
		if err := fs.Parse(args); err != nil {
			return err
		}
		f, err := view.ParseFilter(*filter)
		if err != nil {
			return err
		}
		v := view.New()
		return c.Watch(ctx, v, func() {
			// clear screen, cursor home
			fmt.Fprint(out, "\033[H\033[2J")
			render(out, view.Visible(v.Tasks(), *search, f))
		})

	default:
		printHelp(out)
		return fmt.Errorf("unknown command %q", command)
	}
}

func listFlags(name string, out io.Writer) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	filter := fs.String("filter", string(view.FilterAll), "all, active or completed")
	search := fs.String("search", "", "case-insensitive title substring")
	return fs, filter, search
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid task id %q", models.ErrValidation, s)
	}
	return id, nil
}

func render(out io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "no tasks")
		return
	}
	for _, t := range tasks {
		renderTask(out, t)
	}
}

func renderTask(out io.Writer, t models.Task) {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	fmt.Fprintf(out, "[%s] %4d  %s\n", mark, t.ID, t.Title)
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: tasks [-api URL] <command> [args]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Available commands:")
	fmt.Fprintln(out, "  ls [-filter all|active|completed] [-search text]  - list tasks, newest first")
	fmt.Fprintln(out, "  add <title...>                                     - add a task")
	fmt.Fprintln(out, "  done <id> | undo <id>                              - mark a task completed or active")
	fmt.Fprintln(out, "  rename <id> <title...>                             - change a task's title")
	fmt.Fprintln(out, "  rm <id>                                            - remove a task")
	fmt.Fprintln(out, "  watch [-filter ...] [-search ...]                  - follow the list live")
}
