// Command exocortex is the single local binary for the memory engine:
// `add`, `import`, `stats`, `entities`, `contradictions`, `serve`,
// `retrieval-regression`, `backups`, and `restore`, dispatched on
// os.Args[1] exactly like memento-setup/memento-backup were flag-based
// single binaries.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scrypster/exocortex/internal/backup"
	"github.com/scrypster/exocortex/internal/config"
	"github.com/scrypster/exocortex/internal/embedding"
	"github.com/scrypster/exocortex/internal/engine"
	"github.com/scrypster/exocortex/internal/importer"
	"github.com/scrypster/exocortex/internal/logging"
	"github.com/scrypster/exocortex/internal/scheduler"
	"github.com/scrypster/exocortex/internal/server"
	"github.com/scrypster/exocortex/internal/settings"
	"github.com/scrypster/exocortex/internal/storage"
	"github.com/scrypster/exocortex/internal/storage/sqlite"
	"github.com/scrypster/exocortex/internal/surface"
	"github.com/scrypster/exocortex/pkg/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: "info", Format: "console", Output: "stderr"})

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "entities":
		err = runEntities(os.Args[2:])
	case "contradictions":
		err = runContradictions(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "retrieval-regression":
		err = runRetrievalRegression(os.Args[2:])
	case "backups":
		err = runBackups(os.Args[2:])
	case "restore":
		err = runRestore(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "exocortex: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: exocortex <add|import|stats|entities|contradictions|serve|retrieval-regression|backups|restore> [flags]")
}

// openEngine opens the store at cfg.Storage.DBPath and wires an Engine with
// an Ollama-backed embedder, the same set of dependencies every subcommand
// needs. Callers must call the returned closer once done.
func openEngine(cfg *config.Config) (*engine.Engine, *sqlite.MemoryStore, func() error, error) {
	if cfg.Storage.DBPath != ":memory:" {
		if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	store, err := sqlite.NewMemoryStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	db := store.DB()
	set := settings.New(db)
	if err := set.Bootstrap(context.Background()); err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("bootstrap settings: %w", err)
	}

	embedClient := newEmbedder(cfg)

	e, err := engine.New(engine.Deps{
		Memories: store,
		Search:   sqlite.NewSearchProvider(db),
		Entities: sqlite.NewEntityStore(db),
		Links:    sqlite.NewLinkStore(db),
		Goals:    sqlite.NewGoalStore(db),
		Intel:    sqlite.NewIntelligenceStore(db),
		Regress:  sqlite.NewRegressionStore(db),
		Settings: set,
		Embedder: embedClient,
	}, engine.DefaultConfig())
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("build engine: %w", err)
	}

	return e, store, store.Close, nil
}

// newEmbedder builds the Ollama-backed embedder. EXOCORTEX_MODEL_DIR points
// at Ollama's own model cache, not a model name; it's passed through as
// OLLAMA_MODELS so a local ollama server resolves weights from there.
func newEmbedder(cfg *config.Config) *embedding.Client {
	if cfg.Storage.ModelDir != "" {
		_ = os.Setenv("OLLAMA_MODELS", cfg.Storage.ModelDir)
	}
	provider := embedding.NewOllamaProvider(embedding.OllamaConfig{})
	return embedding.NewClient(provider, embedding.DefaultClientConfig())
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	content := fs.String("content", "", "memory content (required)")
	contentType := fs.String("type", "note", "content type: text, conversation, note, summary")
	tags := fs.String("tags", "", "comma-separated tags")
	sourceURI := fs.String("source-uri", "", "optional source URI")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *content == "" {
		return fmt.Errorf("add: --content is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	e, _, closeFn, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := e.Create(context.Background(), types.CreateMemoryInput{
		Content:     *content,
		ContentType: types.ContentType(*contentType),
		Source:      types.SourceCLI,
		SourceURI:   *sourceURI,
		Tags:        splitCSV(*tags),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dir := fs.String("dir", "", "vault/directory of Markdown notes to import (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("import: --dir is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	e, _, closeFn, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	imp := importer.NewObsidianImporter(e)
	ctx := context.Background()
	jobID, err := imp.StartImport(ctx, *dir)
	if err != nil {
		return err
	}

	for {
		progress, ok := imp.GetJobProgress(jobID)
		if !ok {
			return fmt.Errorf("import: lost track of job %s", jobID)
		}
		if progress.Status == "complete" || progress.Status == "failed" {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	result := imp.GetJobResult(jobID)
	if result == nil {
		return fmt.Errorf("import: job %s produced no result", jobID)
	}
	return printJSON(result)
}

func runStats(args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	_, store, closeFn, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	active, err := store.CountActive(ctx)
	if err != nil {
		return err
	}

	entities := sqlite.NewEntityStore(store.DB())
	entityPage, err := entities.ListEntities(ctx, storage.ListOptions{Page: 1, Limit: 1})
	if err != nil {
		return err
	}

	intel := sqlite.NewIntelligenceStore(store.DB())
	pending, err := intel.ListContradictions(ctx, types.ContradictionPending)
	if err != nil {
		return err
	}

	return printJSON(map[string]int{
		"active_memories":        active,
		"entities":               entityPage.Total,
		"pending_contradictions": len(pending),
	})
}

func runEntities(args []string) error {
	fs := flag.NewFlagSet("entities", flag.ExitOnError)
	limit := fs.Int("limit", 50, "max entities to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	_, store, closeFn, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	entities := sqlite.NewEntityStore(store.DB())
	page, err := entities.ListEntities(context.Background(), storage.ListOptions{Page: 1, Limit: *limit})
	if err != nil {
		return err
	}
	return printJSON(page)
}

func runContradictions(args []string) error {
	fs := flag.NewFlagSet("contradictions", flag.ExitOnError)
	status := fs.String("status", string(types.ContradictionPending), "pending, resolved, or dismissed")
	resolveID := fs.String("resolve", "", "resolve the contradiction with this ID")
	resolution := fs.String("resolution", "", "resolution note, used with --resolve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	_, store, closeFn, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	intel := sqlite.NewIntelligenceStore(store.DB())
	ctx := context.Background()

	if *resolveID != "" {
		if err := intel.ResolveContradiction(ctx, *resolveID, types.ContradictionResolved, *resolution); err != nil {
			return err
		}
		return printJSON(map[string]string{"status": "resolved", "id": *resolveID})
	}

	list, err := intel.ListContradictions(ctx, types.ContradictionStatus(*status))
	if err != nil {
		return err
	}
	return printJSON(list)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	goldenFile := fs.String("golden-queries", "", "optional YAML file of golden queries for the scheduled retrieval-regression job")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	e, store, closeFn, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	set := settings.New(store.DB())
	hub := surface.NewHub()
	hubHook := hub.OnMemoryCreated(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedCfg := scheduler.Config{DBPath: cfg.Storage.DBPath, BackupDir: cfg.Backup.BackupDir}
	if *goldenFile != "" {
		schedCfg.GoldenQuery = func(ctx context.Context) ([]types.GoldenQuery, error) {
			return loadGoldenQueries(*goldenFile)
		}
	}
	sched := scheduler.New(e, set, schedCfg)
	writeHook := sched.OnMemoryWritten(ctx)
	e.SetOnMemoryCreated(func(memoryID string) {
		hubHook(memoryID)
		writeHook(memoryID)
	})
	go sched.Start(ctx)
	defer sched.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	actualAddr, err := server.Start(ctx, addr, server.Deps{
		Engine:   e,
		Memories: store,
		Entities: sqlite.NewEntityStore(store.DB()),
		Intel:    sqlite.NewIntelligenceStore(store.DB()),
		Embedder: newEmbedder(cfg),
		Hub:      hub,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exocortex: serving on %s\n", actualAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}

func runRetrievalRegression(args []string) error {
	fs := flag.NewFlagSet("retrieval-regression", flag.ExitOnError)
	goldenFile := fs.String("golden-queries", "", "YAML file of golden queries (required)")
	failOnAlert := fs.Bool("fail-on-alert", false, "exit 1 if any alert fires")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *goldenFile == "" {
		return fmt.Errorf("retrieval-regression: --golden-queries is required")
	}

	queries, err := loadGoldenQueries(*goldenFile)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	e, _, closeFn, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	alerts, err := e.RunRetrievalRegression(context.Background(), "", queries)
	if err != nil {
		return err
	}
	if err := printJSON(alerts); err != nil {
		return err
	}

	if *failOnAlert && len(alerts) > 0 {
		os.Exit(1)
	}
	return nil
}

func runBackups(args []string) error {
	fs := flag.NewFlagSet("backups", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Backup.BackupDir == "" {
		return fmt.Errorf("backups: no backup directory configured")
	}

	list, err := backup.List(cfg.Backup.BackupDir)
	if err != nil {
		return err
	}
	return printJSON(list)
}

// runRestore overwrites a database file with a verified backup, mirroring
// memento-backup's -restore flag. The target database must not be open by
// any running exocortex process.
func runRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	backupPath := fs.String("backup", "", "path to the backup file to restore (defaults to the newest backup in backup.dir)")
	target := fs.String("target", "", "path to restore into (defaults to storage.db_path)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	src := *backupPath
	if src == "" {
		if cfg.Backup.BackupDir == "" {
			return fmt.Errorf("restore: --backup is required when no backup directory is configured")
		}
		latest, err := backup.Latest(cfg.Backup.BackupDir)
		if err != nil {
			return err
		}
		src = latest.Path
	}

	dst := *target
	if dst == "" {
		dst = cfg.Storage.DBPath
	}

	if err := backup.Restore(src, dst); err != nil {
		return err
	}
	return printJSON(map[string]string{"status": "restored", "backup": src, "target": dst})
}

// loadGoldenQueries reads a YAML list of golden queries, the static
// definition format named in the domain stack for C7.
func loadGoldenQueries(path string) ([]types.GoldenQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read golden queries: %w", err)
	}
	var queries []types.GoldenQuery
	if err := yaml.Unmarshal(data, &queries); err != nil {
		return nil, fmt.Errorf("parse golden queries: %w", err)
	}
	return queries, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
