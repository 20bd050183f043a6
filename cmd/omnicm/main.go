package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/viant/omnicm/backend/afs"
	omcp "github.com/viant/omnicm/mcp"
	"github.com/viant/omnicm/service"
)

var stdout io.Writer = os.Stdout

func main() {
	startGops()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(os.Args[2:])
	case "get", "cat":
		getCmd(os.Args[2:])
	case "ls":
		lsCmd(os.Args[2:])
	case "put":
		putCmd(os.Args[2:])
	case "mkdir":
		mkdirCmd(os.Args[2:])
	case "rm":
		rmCmd(os.Args[2:])
	case "mv":
		mvCmd(os.Args[2:])
	case "checkpoints":
		checkpointsCmd(os.Args[2:])
	case "restore":
		restoreCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: omnicm <command> [options]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve        Run the REST contents API and the MCP server")
	fmt.Fprintln(os.Stderr, "  get          Print a document (alias: cat)")
	fmt.Fprintln(os.Stderr, "  ls           List a directory")
	fmt.Fprintln(os.Stderr, "  put          Save a file or notebook from --file or stdin")
	fmt.Fprintln(os.Stderr, "  mkdir        Create a directory")
	fmt.Fprintln(os.Stderr, "  rm           Delete a document or directory tree")
	fmt.Fprintln(os.Stderr, "  mv           Rename a document")
	fmt.Fprintln(os.Stderr, "  checkpoints  List, create or delete checkpoints")
	fmt.Fprintln(os.Stderr, "  restore      Restore a document from a checkpoint")
}

// clientFlags selects where commands run: a local store built from config, or a running MCP server.
type clientFlags struct {
	configPath *string
	root       *string
	mcpAddr    *string
	debugSleep *int
}

func newClientFlags(flags *flag.FlagSet) *clientFlags {
	return &clientFlags{
		configPath: flags.String("config", "", "config yaml (optional, defaults to ~/omnicm/config.yaml if present)"),
		root:       flags.String("root", "", "local root directory (afs driver, used when no config is given)"),
		mcpAddr:    flags.String("mcp-addr", "", "call a running omnicm MCP server instead of a local store"),
		debugSleep: flags.Int("debug-sleep", 0, "debug: sleep N seconds before execution (for gops)"),
	}
}

func (c *clientFlags) open(ctx context.Context, cmd string) (contentsClient, error) {
	maybeDebugSleep(cmd, *c.debugSleep)
	if addr := strings.TrimSpace(*c.mcpAddr); addr != "" {
		remote, err := newRemoteClient(ctx, addr)
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
	cfg, err := loadConfig(ctx, *c.configPath, *c.root)
	if err != nil {
		return nil, err
	}
	svc, err := service.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &localClient{Tools: omcp.NewTools(svc.Store(), false), svc: svc}, nil
}

// loadConfig reads the config file, or builds a local afs config from root.
func loadConfig(ctx context.Context, configPath, root string) (*service.Config, error) {
	if root = strings.TrimSpace(root); root != "" && strings.TrimSpace(configPath) == "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		cfg := &service.Config{}
		cfg.Contents.Root = abs
		cfg.Backend.Driver = afs.Driver
		cfg.Init()
		return cfg, cfg.Validate()
	}
	configPath = resolveConfigPath(configPath)
	if configPath == "" {
		return nil, fmt.Errorf("either --config, --root or ~/omnicm/config.yaml is required")
	}
	cfg, err := service.LoadConfig(ctx, configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if root != "" {
		cfg.Contents.Root = root
	}
	return cfg, nil
}

func resolveConfigPath(flagPath string) string {
	if strings.TrimSpace(flagPath) != "" {
		return flagPath
	}
	if env := strings.TrimSpace(os.Getenv("OMNICM_CONFIG")); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(home, "omnicm", "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func requireArgs(flags *flag.FlagSet, n int) []string {
	if flags.NArg() < n {
		flags.Usage()
		os.Exit(2)
	}
	return flags.Args()
}

func getCmd(args []string) {
	flags := flag.NewFlagSet("get", flag.ExitOnError)
	cf := newClientFlags(flags)
	typ := flags.String("type", "", "expected type: file|notebook|directory")
	format := flags.String("format", "", "file format: text|base64")
	maxBytes := flags.Int("max-bytes", 0, "max bytes of text to print (default 64KiB)")
	mode := flags.String("mode", "head", "text window: head|tail")
	startLine := flags.Int("start-line", 0, "first line to print (1-based)")
	lineCount := flags.Int("line-count", 0, "number of lines to print")
	asJSON := flags.Bool("json", false, "print the full model as JSON")
	flags.Parse(args)
	p := requireArgs(flags, 1)[0]

	ctx, cancel := commandContext()
	defer cancel()
	cli, err := cf.open(ctx, "get")
	if err != nil {
		log.Fatalf("get: %v", err)
	}
	defer cli.Close()

	out, err := cli.Get(ctx, &omcp.GetInput{
		Path:      p,
		Type:      *typ,
		Format:    *format,
		LineRange: omcp.LineRange{StartLine: *startLine, LineCount: *lineCount},
		MaxBytes:  *maxBytes,
		Mode:      *mode,
	})
	if err != nil {
		log.Fatalf("get: %v", err)
	}
	if *asJSON || out.Document.Type != "file" {
		printJSON(out.Document)
		return
	}
	fmt.Fprint(stdout, out.Document.Content)
	if out.Remaining > 0 {
		log.Printf("get: %d more bytes not shown", out.Remaining)
	}
}

func lsCmd(args []string) {
	flags := flag.NewFlagSet("ls", flag.ExitOnError)
	cf := newClientFlags(flags)
	maxItems := flags.Int("max-items", 0, "max entries to print")
	flags.Parse(args)
	p := ""
	if flags.NArg() > 0 {
		p = flags.Arg(0)
	}

	ctx, cancel := commandContext()
	defer cancel()
	cli, err := cf.open(ctx, "ls")
	if err != nil {
		log.Fatalf("ls: %v", err)
	}
	defer cli.Close()

	out, err := cli.List(ctx, &omcp.ListInput{Path: p, MaxItems: *maxItems})
	if err != nil {
		log.Fatalf("ls: %v", err)
	}
	for _, item := range out.Items {
		size := "-"
		if item.Size != nil {
			size = strconv.FormatInt(*item.Size, 10)
		}
		fmt.Fprintf(stdout, "%-9s %10s %s %s\n", item.Type, size, item.LastModified.Format(time.RFC3339), item.Name)
	}
	if len(out.Items) < out.Total {
		fmt.Fprintf(stdout, "... %d more\n", out.Total-len(out.Items))
	}
}

func putCmd(args []string) {
	flags := flag.NewFlagSet("put", flag.ExitOnError)
	cf := newClientFlags(flags)
	src := flags.String("file", "", "local file to upload (default stdin)")
	typ := flags.String("type", "", "document type: file|notebook (default from extension)")
	format := flags.String("format", "text", "file format: text|base64")
	flags.Parse(args)
	p := requireArgs(flags, 1)[0]

	var data []byte
	var err error
	if *src != "" {
		data, err = os.ReadFile(*src)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		log.Fatalf("put: %v", err)
	}
	docType := *typ
	if docType == "" {
		docType = "file"
		if strings.HasSuffix(p, ".ipynb") {
			docType = "notebook"
		}
	}

	ctx, cancel := commandContext()
	defer cancel()
	cli, err := cf.open(ctx, "put")
	if err != nil {
		log.Fatalf("put: %v", err)
	}
	defer cli.Close()

	out, err := cli.Save(ctx, &omcp.SaveInput{Path: p, Type: docType, Format: *format, Content: string(data)})
	if err != nil {
		log.Fatalf("put: %v", err)
	}
	fmt.Fprintf(stdout, "saved %s\n", out.Document.Path)
}

func mkdirCmd(args []string) {
	flags := flag.NewFlagSet("mkdir", flag.ExitOnError)
	cf := newClientFlags(flags)
	flags.Parse(args)
	p := requireArgs(flags, 1)[0]

	ctx, cancel := commandContext()
	defer cancel()
	cli, err := cf.open(ctx, "mkdir")
	if err != nil {
		log.Fatalf("mkdir: %v", err)
	}
	defer cli.Close()
	if _, err = cli.Save(ctx, &omcp.SaveInput{Path: p, Type: "directory"}); err != nil {
		log.Fatalf("mkdir: %v", err)
	}
}

func rmCmd(args []string) {
	flags := flag.NewFlagSet("rm", flag.ExitOnError)
	cf := newClientFlags(flags)
	flags.Parse(args)
	paths := requireArgs(flags, 1)

	ctx, cancel := commandContext()
	defer cancel()
	cli, err := cf.open(ctx, "rm")
	if err != nil {
		log.Fatalf("rm: %v", err)
	}
	defer cli.Close()
	for _, p := range paths {
		if _, err = cli.Delete(ctx, &omcp.DeleteInput{Path: p}); err != nil {
			log.Fatalf("rm: %s: %v", p, err)
		}
	}
}

func mvCmd(args []string) {
	flags := flag.NewFlagSet("mv", flag.ExitOnError)
	cf := newClientFlags(flags)
	flags.Parse(args)
	paths := requireArgs(flags, 2)

	ctx, cancel := commandContext()
	defer cancel()
	cli, err := cf.open(ctx, "mv")
	if err != nil {
		log.Fatalf("mv: %v", err)
	}
	defer cli.Close()
	out, err := cli.Rename(ctx, &omcp.RenameInput{Path: paths[0], NewPath: paths[1]})
	if err != nil {
		log.Fatalf("mv: %v", err)
	}
	fmt.Fprintf(stdout, "renamed %s -> %s\n", paths[0], out.Document.Path)
}

func checkpointsCmd(args []string) {
	flags := flag.NewFlagSet("checkpoints", flag.ExitOnError)
	cf := newClientFlags(flags)
	create := flags.Bool("create", false, "create a checkpoint of the current version first")
	del := flags.String("delete", "", "delete the checkpoint with this id first")
	flags.Parse(args)
	p := requireArgs(flags, 1)[0]

	ctx, cancel := commandContext()
	defer cancel()
	cli, err := cf.open(ctx, "checkpoints")
	if err != nil {
		log.Fatalf("checkpoints: %v", err)
	}
	defer cli.Close()
	out, err := cli.Checkpoints(ctx, &omcp.CheckpointsInput{Path: p, Create: *create, Delete: *del})
	if err != nil {
		log.Fatalf("checkpoints: %v", err)
	}
	if out.Created != nil {
		fmt.Fprintf(stdout, "created %s\n", out.Created.ID)
	}
	for _, cp := range out.Checkpoints {
		fmt.Fprintf(stdout, "%s %s\n", cp.ID, cp.LastModified.Format(time.RFC3339))
	}
}

func restoreCmd(args []string) {
	flags := flag.NewFlagSet("restore", flag.ExitOnError)
	cf := newClientFlags(flags)
	flags.Parse(args)
	params := requireArgs(flags, 2)

	ctx, cancel := commandContext()
	defer cancel()
	cli, err := cf.open(ctx, "restore")
	if err != nil {
		log.Fatalf("restore: %v", err)
	}
	defer cli.Close()
	if _, err = cli.Restore(ctx, &omcp.RestoreInput{Path: params[0], ID: params[1]}); err != nil {
		log.Fatalf("restore: %v", err)
	}
	fmt.Fprintf(stdout, "restored %s from checkpoint %s\n", params[0], params[1])
}

func printJSON(value any) {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", " ")
	if err := enc.Encode(value); err != nil {
		log.Printf("encode: %v", err)
	}
}

func maybeDebugSleep(cmd string, seconds int) {
	if seconds <= 0 {
		seconds = debugSleepFromEnv()
	}
	if seconds <= 0 {
		return
	}
	log.Printf("debug: cmd=%s pid=%d sleep=%ds", cmd, os.Getpid(), seconds)
	time.Sleep(time.Duration(seconds) * time.Second)
}

func startGops() {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Printf("gops: %v", err)
	}
}

func debugSleepFromEnv() int {
	val := strings.TrimSpace(os.Getenv("OMNICM_DEBUG_SLEEP"))
	if val == "" {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
