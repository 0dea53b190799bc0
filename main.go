// Command lamina evaluates a build script, prints the resulting surface and
// cell cards, and optionally saves the session to a SQLite snapshot.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/lamina/pkg/config"
	"github.com/chazu/lamina/pkg/model"
	"github.com/chazu/lamina/pkg/snapshot"
	"github.com/google/uuid"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("lamina", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "JSON configuration file")
	scriptPath := fs.String("script", "-", "Build script to evaluate, - for stdin")
	dbPath := fs.String("db", "", "SQLite snapshot database")
	mesh := fs.Bool("mesh", false, "Tessellate material cells and report mesh sizes")
	asJSON := fs.Bool("json", false, "Write the result as JSON")
	list := fs.Bool("list", false, "List the sessions saved in -db")
	load := fs.String("load", "", "Print the cards of a session saved in -db")
	at := fs.String("at", "", "Report the cells containing the point x,y,z")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "lamina: %v\n", err)
			return 1
		}
		cfg = loaded
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.GetLogLevel()}))

	ctx := context.Background()
	if *list || *load != "" {
		if err := inspect(ctx, *dbPath, *list, *load, logger, stdout); err != nil {
			fmt.Fprintf(stderr, "lamina: %v\n", err)
			return 1
		}
		return 0
	}

	var point [3]float64
	if *at != "" {
		p, err := parsePoint(*at)
		if err != nil {
			fmt.Fprintf(stderr, "lamina: %v\n", err)
			return 2
		}
		point = p
	}

	source, err := readScript(*scriptPath, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "lamina: %v\n", err)
		return 1
	}

	app := NewApp(cfg, logger)
	result := app.Evaluate(source, *mesh)
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(stderr, "%s:%d: %s\n", *scriptPath, e.Line, e.Message)
			} else {
				fmt.Fprintf(stderr, "%s: %s\n", *scriptPath, e.Message)
			}
		}
		return 1
	}

	if *dbPath != "" {
		if err := save(ctx, *dbPath, result.model); err != nil {
			fmt.Fprintf(stderr, "lamina: %v\n", err)
			return 1
		}
		logger.Info("snapshot saved", "db", *dbPath, "session", result.Session)
	}

	if *at != "" {
		ids, err := app.Locate(result, point)
		if err != nil {
			fmt.Fprintf(stderr, "lamina: %v\n", err)
			return 1
		}
		result.Point = &PointData{At: point, Cells: ids}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(stderr, "lamina: %v\n", err)
			return 1
		}
		return 0
	}
	writeCards(stdout, result.Surfaces, result.Cells)
	for _, m := range result.Meshes {
		fmt.Fprintf(stdout, "mesh cell=%d material=%d triangles=%d\n", m.Cell, m.Material, len(m.Indices)/3)
	}
	if p := result.Point; p != nil {
		fmt.Fprintf(stdout, "point %g,%g,%g cells=%v\n", p.At[0], p.At[1], p.At[2], p.Cells)
	}
	return 0
}

// parsePoint reads "x,y,z".
func parsePoint(s string) ([3]float64, error) {
	var p [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("point %q: want x,y,z", s)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return p, fmt.Errorf("point %q: %w", s, err)
		}
		p[i] = v
	}
	return p, nil
}

func readScript(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(b), nil
}

func save(ctx context.Context, dbPath string, m *model.Model) error {
	store, err := snapshot.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(ctx, m)
}

// inspect lists saved sessions or prints the cards of one of them.
func inspect(ctx context.Context, dbPath string, list bool, load string, logger *slog.Logger, w io.Writer) error {
	if dbPath == "" {
		return fmt.Errorf("-list and -load require -db")
	}
	store, err := snapshot.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if list {
		infos, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, info := range infos {
			fmt.Fprintf(w, "%s %s surfaces=%d cells=%d\n",
				info.ID, info.SavedAt.Format(time.RFC3339), info.Surfaces, info.Cells)
		}
		return nil
	}

	id, err := uuid.Parse(load)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", load, err)
	}
	m, err := store.Load(ctx, id, model.WithLogger(logger))
	if err != nil {
		return err
	}
	cells, err := m.CellCards()
	if err != nil {
		return err
	}
	writeCards(w, m.SurfaceCards(), cells)
	return nil
}

// writeCards prints the cell block, a blank line, then the surface block.
func writeCards(w io.Writer, surfaces, cells []string) {
	for _, c := range cells {
		fmt.Fprintln(w, c)
	}
	fmt.Fprintln(w)
	for _, s := range surfaces {
		fmt.Fprintln(w, s)
	}
}
