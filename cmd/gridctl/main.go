// Command gridctl inspects and edits a persistent attribute grid.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/attrgrid/internal/config"
	"github.com/banshee-data/attrgrid/internal/db"
	"github.com/banshee-data/attrgrid/internal/fsutil"
	"github.com/banshee-data/attrgrid/internal/grid"
	"github.com/banshee-data/attrgrid/internal/monitoring"
	"github.com/banshee-data/attrgrid/internal/storage"
	"github.com/banshee-data/attrgrid/internal/version"
)

const (
	exitOK    = 0
	exitFalse = 1 // operation refused: invalid coordinate or empty cell
	exitError = 2
)

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}

func run(args []string, stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) int {
	fs := flag.NewFlagSet("gridctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a .json or .toml grid config")
	backend := fs.String("backend", "", "Backing store: memory, sqlite or pebble")
	location := fs.String("location", "", "Storage location (file, directory or :memory:)")
	size := fs.Int("size", 0, "Board dimension")
	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}
	if *showVersion {
		fmt.Fprintf(stdout, "gridctl %s\n", version.String())
		return exitOK
	}

	cfg, err := loadConfig(*configPath, lookupEnv)
	if err != nil {
		fmt.Fprintf(stderr, "gridctl: %v\n", err)
		return exitError
	}
	cfg.Override(*size, *backend, *location)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "gridctl: invalid configuration: %v\n", err)
		return exitError
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitError
	}

	if rest[0] == "migrate" {
		if cfg.GetBackend() != config.BackendSQLite {
			fmt.Fprintf(stderr, "gridctl: migrate requires the %s backend\n", config.BackendSQLite)
			return exitError
		}
		if err := db.RunMigrateCommand(stdout, rest[1:], cfg.GetLocation()); err != nil {
			fmt.Fprintf(stderr, "gridctl: %v\n", err)
			return exitError
		}
		return exitOK
	}

	if !cfg.IsDurable() {
		monitoring.Logf("board %s/%s is not durable; changes are discarded on exit", cfg.GetBackend(), cfg.GetLocation())
	}

	g, err := storage.OpenGrid(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "gridctl: %v\n", err)
		return exitError
	}
	defer g.Close()

	ok, err := execute(g, rest, stdout)
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "gridctl: %v\n", err)
		fs.Usage()
		return exitError
	case err != nil:
		fmt.Fprintf(stderr, "gridctl: %v\n", err)
		return exitError
	case !ok:
		return exitFalse
	}
	if err := g.Close(); err != nil {
		fmt.Fprintf(stderr, "gridctl: %v\n", err)
		return exitError
	}
	return exitOK
}

func loadConfig(path string, lookupEnv func(string) (string, bool)) (*config.GridConfig, error) {
	cfg := config.EmptyGridConfig()
	if path != "" {
		loaded, err := config.LoadGridConfig(fsutil.OSFileSystem{}, path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// execute runs one grid subcommand. The boolean mirrors the grid
// operation's own result.
func execute(g *grid.Grid, args []string, w io.Writer) (bool, error) {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "get":
		x, y, err := parseXY(cmd, args, 2)
		if err != nil {
			return false, err
		}
		attrs, ok := g.GetPosition(x, y)
		if !ok {
			fmt.Fprintf(w, "%s empty\n", grid.Coord{X: x, Y: y})
			return false, nil
		}
		return true, printAttrs(w, grid.Coord{X: x, Y: y}, attrs)

	case "set":
		x, y, err := parseXYMin(cmd, args, 2)
		if err != nil {
			return false, err
		}
		attrs, err := parsePairs(args[2:])
		if err != nil {
			return false, err
		}
		return report(w, cmd, x, y)(g.SetPosition(x, y, attrs))

	case "update":
		x, y, err := parseXY(cmd, args, 4)
		if err != nil {
			return false, err
		}
		return report(w, cmd, x, y)(g.UpdateAttribute(x, y, args[2], grid.ParseValue(args[3])))

	case "remove":
		x, y, err := parseXY(cmd, args, 2)
		if err != nil {
			return false, err
		}
		return report(w, cmd, x, y)(g.RemovePosition(x, y))

	case "dump":
		state := g.BoardState()
		coords := make([]grid.Coord, 0, len(state))
		for c := range state {
			coords = append(coords, c)
		}
		sort.Slice(coords, func(i, j int) bool {
			if coords[i].X != coords[j].X {
				return coords[i].X < coords[j].X
			}
			return coords[i].Y < coords[j].Y
		})
		for _, c := range coords {
			if err := printAttrs(w, c, state[c]); err != nil {
				return false, err
			}
		}
		return true, nil

	default:
		return false, fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func report(w io.Writer, cmd string, x, y int) func(bool, error) (bool, error) {
	return func(ok bool, err error) (bool, error) {
		if err != nil {
			return false, err
		}
		if !ok {
			fmt.Fprintf(w, "%s %s: no change\n", cmd, grid.Coord{X: x, Y: y})
			return false, nil
		}
		fmt.Fprintf(w, "%s %s: ok\n", cmd, grid.Coord{X: x, Y: y})
		return true, nil
	}
}

func printAttrs(w io.Writer, c grid.Coord, attrs grid.Attributes) error {
	text, err := grid.EncodeAttributes(attrs)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d %d %s\n", c.X, c.Y, text)
	return nil
}

func parseXY(cmd string, args []string, want int) (int, int, error) {
	if len(args) != want {
		return 0, 0, fmt.Errorf("%w: %s takes %d arguments, got %d", errUsage, cmd, want, len(args))
	}
	return parseXYMin(cmd, args, 2)
}

func parseXYMin(cmd string, args []string, n int) (int, int, error) {
	if len(args) < n {
		return 0, 0, fmt.Errorf("%w: %s needs X and Y", errUsage, cmd)
	}
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad X %q", errUsage, args[0])
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad Y %q", errUsage, args[1])
	}
	return x, y, nil
}

// parsePairs turns key=value arguments into an attribute list, inferring
// each value's kind.
func parsePairs(args []string) (grid.Attributes, error) {
	attrs := make(grid.Attributes, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: attribute %q is not key=value", errUsage, arg)
		}
		attrs = append(attrs, grid.P(key, grid.ParseValue(value)))
	}
	return attrs, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprint(w, `Usage: gridctl [flags] <command> [args]

Commands:
  get X Y                  print the attributes at (X, Y)
  set X Y key=value...     replace the attributes at (X, Y)
  update X Y KEY VALUE     set one attribute on an existing cell
  remove X Y               delete the cell at (X, Y)
  dump                     print every non-empty cell
  migrate <action>         manage the sqlite schema (see: gridctl migrate help)

Flags:
`)
	fs.PrintDefaults()
}
