// Command admin inspects and repairs a world's regeneration state
// offline: the kv store records, the arming configuration, and the
// compressed audit/tick logs. Run it against a stopped server; sqlite
// is opened directly.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"blockregen.dev/internal/kvstore"
	"blockregen.dev/internal/persistence/audit"
	"blockregen.dev/internal/regen"
	"blockregen.dev/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "records":
			recordsCmd(os.Args[2:])
			return
		case "purge":
			purgeCmd(os.Args[2:])
			return
		case "config":
			configCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <records|purge|config|audit|db> [flags]")
	os.Exit(2)
}

func openStore(dataDir, worldID string) (*kvstore.Store, *kvstore.SQLite) {
	path := filepath.Join(dataDir, "worlds", worldID, "kv.db")
	backend, err := kvstore.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	return kvstore.New(backend, nil), backend
}

func parsePos(s string) ([3]int, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return [3]int{}, fmt.Errorf("expected x,y,z")
	}
	var pos [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return [3]int{}, fmt.Errorf("axis %d: %v", i, err)
		}
		pos[i] = v
	}
	return pos, nil
}

func recordsCmd(args []string) {
	fs := flag.NewFlagSet("records", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	posArg := fs.String("pos", "", "show only the record at x,y,z")
	_ = fs.Parse(args)

	store, backend := openStore(*dataDir, *worldID)
	defer backend.Close()

	if *posArg != "" {
		pos, err := parsePos(*posArg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -pos:", err)
			os.Exit(2)
		}
		var rec regen.Record
		if !store.Get(regen.RecordKey(pos), &rec) {
			fmt.Fprintln(os.Stderr, "no record at", *posArg)
			os.Exit(1)
		}
		printJSON(rec)
		return
	}

	keys := store.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		if !strings.HasPrefix(key, regen.RecordKeyPrefix) {
			continue
		}
		var rec regen.Record
		if !store.Get(key, &rec) {
			fmt.Printf("%s\t<unreadable>\n", key)
			continue
		}
		b, _ := json.Marshal(rec)
		fmt.Printf("%s\t%s\n", key, b)
	}
}

func purgeCmd(args []string) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	posArg := fs.String("pos", "", "record position x,y,z (required)")
	_ = fs.Parse(args)

	if *posArg == "" {
		fmt.Fprintln(os.Stderr, "missing -pos")
		os.Exit(2)
	}
	pos, err := parsePos(*posArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -pos:", err)
		os.Exit(2)
	}

	store, backend := openStore(*dataDir, *worldID)
	defer backend.Close()

	key := regen.RecordKey(pos)
	if !store.Has(key) {
		fmt.Fprintln(os.Stderr, "no record at", *posArg)
		os.Exit(1)
	}
	if !store.Remove(key) {
		fmt.Fprintln(os.Stderr, "remove failed")
		os.Exit(1)
	}
	fmt.Println("purged", key)
}

func configCmd(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	ticks := fs.String("ticks", "", "generation ticks (set mode)")
	block := fs.String("block", "", "original block type (set mode)")
	placeholder := fs.String("placeholder", "", "placeholder block type (set mode)")
	_ = fs.Parse(args)

	store, backend := openStore(*dataDir, *worldID)
	defer backend.Close()

	engine := regen.NewEngine(store, nil, "", nil)

	if *ticks == "" && *block == "" && *placeholder == "" {
		cfg, ok := engine.LoadConfig()
		if !ok {
			fmt.Println("not configured")
			return
		}
		printJSON(cfg)
		return
	}

	cfg, err := engine.Configure(regen.ConfigInput{
		GenerationTicks: *ticks,
		BlockType:       *block,
		PlaceholderType: *placeholder,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "configure:", err)
		os.Exit(1)
	}
	printJSON(cfg)
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	kind := fs.String("kind", "audit", "log kind: audit|ticks")
	n := fs.Int("n", 20, "show the most recent N entries")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "worlds", *worldID, *kind)
	path := latestLog(dir)
	if path == "" {
		fmt.Fprintln(os.Stderr, "no log files under", dir)
		os.Exit(1)
	}

	switch *kind {
	case "audit":
		entries, err := audit.ReadFile[world.AuditEntry](path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, e := range tail(entries, *n) {
			printJSON(e)
		}
	case "ticks":
		entries, err := audit.ReadFile[world.TickLogEntry](path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, e := range tail(entries, *n) {
			printJSON(e)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown -kind:", *kind)
		os.Exit(2)
	}
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	_ = fs.Parse(args)

	store, backend := openStore(*dataDir, *worldID)
	defer backend.Close()

	version, err := backend.SchemaVersion()
	if err != nil {
		fmt.Fprintln(os.Stderr, "schema version:", err)
		os.Exit(1)
	}

	keys := store.Keys()
	records := 0
	for _, key := range keys {
		if strings.HasPrefix(key, regen.RecordKeyPrefix) {
			records++
		}
	}

	fmt.Printf("schema_version\t%s\n", version)
	fmt.Printf("keys\t%d\n", len(keys))
	fmt.Printf("records\t%d\n", records)
	fmt.Printf("configured\t%v\n", store.Has(regen.ConfigKey))
}

// latestLog picks the newest hour-rotated file by name; the hour stamp
// sorts lexicographically.
func latestLog(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}

func tail[T any](in []T, n int) []T {
	if n <= 0 || len(in) <= n {
		return in
	}
	return in[len(in)-n:]
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}
