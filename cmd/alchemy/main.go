// Command alchemy is the task-manager CLI: it drives the task registry
// (internal/registry) over a workspace's data_alchemy/ directory.
// Exit code is 0 on success and non-zero on argument or I/O error.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/brunobiangulo/alchemy"
	"github.com/brunobiangulo/alchemy/internal/orchestrator"
	"github.com/brunobiangulo/alchemy/internal/registry"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	workDir := os.Getenv("WORK_DIR")
	if workDir == "" {
		workDir = "."
	}

	reg, err := registry.Open(workDir, slog.Default())
	if err != nil {
		slog.Error("opening task registry", "error", err)
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var runErr error
	switch cmd {
	case "list":
		runErr = runList(reg, args)
	case "show":
		runErr = runShow(reg, args)
	case "rename":
		runErr = runRename(reg, args)
	case "describe":
		runErr = runDescribe(reg, args)
	case "tag":
		runErr = runTag(reg, args)
	case "untag":
		runErr = runUntag(reg, args)
	case "archive":
		runErr = runArchive(reg, args)
	case "unarchive":
		runErr = runUnarchive(reg, args)
	case "delete":
		runErr = runDelete(reg, args)
	case "export":
		runErr = runExport(reg, args)
	case "scan":
		runErr = runScan(reg, args)
	case "resumable":
		runErr = runResumable(reg, args)
	case "run":
		runErr = runProcess(args)
	case "resume":
		runErr = runResume(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "alchemy: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, "alchemy:", runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: alchemy <command> [args]

commands:
  list [--all] [--status S] [--tag T] [--query Q]   list tasks
  show <id>                                         show one task
  rename <id> <name>                                rename a task
  describe <id> <text>                              set a task's description
  tag <id> <csv>                                    add one or more comma-separated tags
  untag <id> <tag>                                  remove a tag
  archive <id>                                       archive a task
  unarchive <id>                                     unarchive a task
  delete <id> [--force] [--files]                    delete a task
  export [--output path]                             export all tasks to CSV
  scan                                                register on-disk tasks missing from the index
  resumable                                           list resumable tasks
  run <query> [--input dir ...]                       run a new alchemy task
  resume <id> [--query Q]                             resume an interrupted task
`)
}

func runList(reg *registry.Registry, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	all := fs.Bool("all", false, "include archived tasks")
	status := fs.String("status", "", "filter by status")
	tag := fs.String("tag", "", "filter by tag")
	query := fs.String("query", "", "filter by substring match against id/name/description/query/tags")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var tasks []registry.TaskSummary
	var err error
	if *query != "" {
		tasks, err = reg.SearchTasks(*query)
	} else {
		tasks, err = reg.ListTasks(*all)
	}
	if err != nil {
		return err
	}

	filtered := tasks[:0]
	for _, t := range tasks {
		if *status != "" && !strings.EqualFold(t.Status, *status) {
			continue
		}
		if *tag != "" && !hasTag(t.Tags, *tag) {
			continue
		}
		filtered = append(filtered, t)
	}

	printTable(filtered)
	return nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func printTable(tasks []registry.TaskSummary) {
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return
	}
	fmt.Printf("%-24s %-10s %-5s %-8s %s\n", "ID", "STATUS", "ITER", "ARCHIVED", "LATEST QUERY")
	for _, t := range tasks {
		archived := "no"
		if t.IsArchived {
			archived = "yes"
		}
		fmt.Printf("%-24s %-10s %-5d %-8s %s\n", t.ID, t.Status, t.Iterations, archived, truncate(t.LatestQuery, 60))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func requireID(args []string) (string, []string, error) {
	if len(args) < 1 {
		return "", nil, fmt.Errorf("missing <id> argument")
	}
	return args[0], args[1:], nil
}

func runShow(reg *registry.Registry, args []string) error {
	id, _, err := requireID(args)
	if err != nil {
		return err
	}
	t, ok, err := reg.GetTask(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return err
	}
	if resumable, err := reg.GetResumableTasks(); err == nil {
		for _, r := range resumable {
			if r.ID == id {
				fmt.Printf("\nresume with: alchemy resume %s   (step=%s, checkpointed %s)\n", id, r.ResumeInfo.CurrentStep, r.ResumeInfo.Timestamp.Format(time.RFC3339))
				break
			}
		}
	}
	return nil
}

func runRename(reg *registry.Registry, args []string) error {
	id, rest, err := requireID(args)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("usage: alchemy rename <id> <name>")
	}
	_, err = reg.UpdateTask(id, func(t *registry.TaskSummary) { t.Name = strings.Join(rest, " ") })
	return err
}

func runDescribe(reg *registry.Registry, args []string) error {
	id, rest, err := requireID(args)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("usage: alchemy describe <id> <text>")
	}
	_, err = reg.UpdateTask(id, func(t *registry.TaskSummary) { t.Description = strings.Join(rest, " ") })
	return err
}

func runTag(reg *registry.Registry, args []string) error {
	id, rest, err := requireID(args)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("usage: alchemy tag <id> <csv>")
	}
	for _, tag := range strings.Split(rest[0], ",") {
		if tag = strings.TrimSpace(tag); tag == "" {
			continue
		}
		if _, err := reg.TagTask(id, tag); err != nil {
			return err
		}
	}
	return nil
}

func runUntag(reg *registry.Registry, args []string) error {
	id, rest, err := requireID(args)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("usage: alchemy untag <id> <tag>")
	}
	_, err = reg.UntagTask(id, rest[0])
	return err
}

func runArchive(reg *registry.Registry, args []string) error {
	id, _, err := requireID(args)
	if err != nil {
		return err
	}
	_, err = reg.ArchiveTask(id)
	return err
}

func runUnarchive(reg *registry.Registry, args []string) error {
	id, _, err := requireID(args)
	if err != nil {
		return err
	}
	_, err = reg.UnarchiveTask(id)
	return err
}

func runDelete(reg *registry.Registry, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	force := fs.Bool("force", false, "skip confirmation prompt")
	files := fs.Bool("files", false, "also delete the task's on-disk files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: alchemy delete <id> [--force] [--files]")
	}
	id := rest[0]
	if err := fs.Parse(rest[1:]); err != nil {
		return err
	}

	if !*force {
		fmt.Printf("delete task %s? [y/N] ", id)
		var reply string
		fmt.Scanln(&reply)
		if !strings.EqualFold(strings.TrimSpace(reply), "y") {
			return fmt.Errorf("aborted")
		}
	}
	return reg.DeleteTask(id, *files)
}

func runExport(reg *registry.Registry, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("output", "alchemy_tasks.csv", "output CSV path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := reg.ExportCSV(*output); err != nil {
		return err
	}
	fmt.Println("exported to", *output)
	return nil
}

func runScan(reg *registry.Registry, _ []string) error {
	n, err := reg.ScanExistingTasks()
	if err != nil {
		return err
	}
	fmt.Printf("scanned workspace, registered %d new task(s)\n", n)
	return nil
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func newEngine() (*alchemy.Engine, error) {
	cfg, err := alchemy.LoadConfig()
	if err != nil {
		return nil, err
	}
	return alchemy.New(cfg, slog.Default())
}

func runProcess(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var inputs stringList
	fs.Var(&inputs, "input", "input directory to ingest (repeatable)")
	var words []string
	for {
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() == 0 {
			break
		}
		words = append(words, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(words) < 1 {
		return fmt.Errorf("usage: alchemy run <query> [--input dir ...]")
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	task, err := engine.NewTask("")
	if err != nil {
		return err
	}
	result := task.Process(context.Background(), strings.Join(words, " "), inputs)
	return printResult(result)
}

func runResume(args []string) error {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	query := fs.String("query", "", "override the checkpointed query")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: alchemy resume <id> [--query Q]")
	}
	if err := fs.Parse(rest[1:]); err != nil {
		return err
	}

	engine, err := newEngine()
	if err != nil {
		return err
	}
	task, err := engine.OpenTask(rest[0])
	if err != nil {
		return err
	}
	result := task.Resume(context.Background(), *query)
	return printResult(result)
}

func printResult(result orchestrator.ProcessResult) error {
	fmt.Printf("task %s iteration %d: %s\n", result.AlchemyID, result.Iteration, result.Status)
	if result.ArtifactRef != "" {
		fmt.Println("artifact:", result.ArtifactRef)
	}
	if result.Status == "error" {
		return fmt.Errorf("%s", result.Message)
	}
	return nil
}

func runResumable(reg *registry.Registry, _ []string) error {
	tasks, err := reg.GetResumableTasks()
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no resumable tasks")
		return nil
	}
	for _, t := range tasks {
		fmt.Printf("%-24s step=%-24s  resume with: alchemy resume %s\n", t.ID, t.ResumeInfo.CurrentStep, t.ID)
	}
	return nil
}
