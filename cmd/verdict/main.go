// Verdict CLI - evaluate validator scenarios or serve evaluations over HTTP.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/verdict/audit"
	"github.com/chazu/verdict/data"
	"github.com/chazu/verdict/schema"
	"github.com/chazu/verdict/server"
	"github.com/chazu/verdict/vm"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	budget := flag.Int64("budget", 0, "Execution step budget (0 = unlimited)")
	auditPath := flag.String("audit", "", "Record outcomes in the given SQLite audit database")
	serveMode := flag.Bool("serve", false, "Start the evaluation server")
	servePort := flag.Int("port", 4567, "Server port (used with -serve)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: verdict [options] [scenario.toml...]\n\n")
		fmt.Fprintf(os.Stderr, "Evaluates validator scenarios. Exit code 0 means every scenario\n")
		fmt.Fprintf(os.Stderr, "produced its expected verdict; 1 means a verdict diverged or a\n")
		fmt.Fprintf(os.Stderr, "scenario failed.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  verdict scenario.toml            # Evaluate one scenario\n")
		fmt.Fprintf(os.Stderr, "  verdict -budget 1000 s1.toml     # Evaluate with a step budget\n")
		fmt.Fprintf(os.Stderr, "  verdict -serve -port 8080        # Serve evaluations on :8080\n")
	}
	flag.Parse()

	var auditStore *audit.Store
	if *auditPath != "" {
		var err error
		auditStore, err = audit.NewStore(*auditPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening audit store: %v\n", err)
			os.Exit(1)
		}
		defer auditStore.Close()
	}

	if *serveMode {
		if err := serve(*servePort, *budget, auditStore, flag.Args(), *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	paths := flag.Args()
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := 0
	for _, path := range paths {
		ok, err := runScenario(path, *budget, auditStore, *verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			failed++
			continue
		}
		if !ok {
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// Scenario is one evaluation fixture: a type manifest, a program, the
// three terms, and the expected verdict.
type Scenario struct {
	Name         string `toml:"name"`
	Manifest     string `toml:"manifest"` // dir containing verdict.toml; "" = scenario's dir
	Program      string `toml:"program"`  // program JSON file, relative to the scenario file
	DatumType    string `toml:"datum_type"`
	RedeemerType string `toml:"redeemer_type"`
	Datum        string `toml:"datum"`    // hex CBOR
	Redeemer     string `toml:"redeemer"` // hex CBOR
	Context      string `toml:"context"`  // hex CBOR
	Expect       bool   `toml:"expect"`
}

func runScenario(path string, budgetSteps int64, auditStore *audit.Store, verbose bool) (bool, error) {
	var sc Scenario
	if _, err := toml.DecodeFile(path, &sc); err != nil {
		return false, fmt.Errorf("decoding scenario: %w", err)
	}
	dir := filepath.Dir(path)
	if sc.Name == "" {
		sc.Name = filepath.Base(path)
	}

	reg, err := loadRegistry(resolvePath(dir, sc.Manifest, dir))
	if err != nil {
		return false, err
	}

	prog, err := loadProgram(resolvePath(dir, sc.Program, ""))
	if err != nil {
		return false, err
	}
	compiled, err := prog.Compile(reg)
	if err != nil {
		return false, fmt.Errorf("compiling program: %w", err)
	}

	datumType, err := schema.ParseTypeRef(sc.DatumType, nil)
	if err != nil {
		return false, fmt.Errorf("datum_type: %w", err)
	}
	redeemerType, err := schema.ParseTypeRef(sc.RedeemerType, nil)
	if err != nil {
		return false, fmt.Errorf("redeemer_type: %w", err)
	}

	datum, err := decodeTerm(sc.Datum)
	if err != nil {
		return false, fmt.Errorf("datum: %w", err)
	}
	redeemer, err := decodeTerm(sc.Redeemer)
	if err != nil {
		return false, fmt.Errorf("redeemer: %w", err)
	}
	ctxTerm, err := decodeTerm(sc.Context)
	if err != nil {
		return false, fmt.Errorf("context: %w", err)
	}

	var b *vm.Budget
	if budgetSteps > 0 {
		b = vm.NewBudget(budgetSteps)
	}
	req := vm.NewRequest(compiled, datum, redeemer, ctxTerm, datumType, redeemerType)
	req.Budget = b

	verdict, evalErr := vm.Evaluate(reg, req)

	if auditStore != nil {
		if _, err := auditStore.Append(sc.Name, verdict, vm.FailureKind(evalErr), b.Spent()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: audit append failed: %v\n", err)
		}
	}

	switch {
	case evalErr != nil:
		fmt.Printf("%s: FAIL (%s: %v)\n", sc.Name, vm.FailureKind(evalErr), evalErr)
		return false, nil
	case verdict != sc.Expect:
		fmt.Printf("%s: verdict %v, expected %v\n", sc.Name, verdict, sc.Expect)
		return false, nil
	default:
		if verbose {
			fmt.Printf("%s: ok (verdict %v, %d steps)\n", sc.Name, verdict, b.Spent())
		} else {
			fmt.Printf("%s: ok\n", sc.Name)
		}
		return true, nil
	}
}

// serve starts the evaluation server, loading validators from any
// scenario files given on the command line.
func serve(port int, budgetSteps int64, auditStore *audit.Store, scenarioPaths []string, verbose bool) error {
	reg := schema.NewRegistry()
	if err := vm.RegisterContextTypes(reg); err != nil {
		return err
	}

	opts := []server.ServerOption{server.WithDefaultBudget(budgetSteps)}
	if auditStore != nil {
		opts = append(opts, server.WithAuditStore(auditStore))
	}
	srv := server.New(reg, opts...)

	loadedManifests := make(map[string]bool)
	for _, path := range scenarioPaths {
		var sc Scenario
		if _, err := toml.DecodeFile(path, &sc); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		dir := filepath.Dir(path)

		manifestDir := resolvePath(dir, sc.Manifest, dir)
		if (sc.Manifest != "" || manifestExists(manifestDir)) && !loadedManifests[manifestDir] {
			loadedManifests[manifestDir] = true
			m, err := schema.LoadManifest(manifestDir)
			if err != nil {
				return err
			}
			if err := m.RegisterAll(reg); err != nil {
				return err
			}
		}

		prog, err := loadProgram(resolvePath(dir, sc.Program, ""))
		if err != nil {
			return err
		}
		datumType, err := schema.ParseTypeRef(sc.DatumType, nil)
		if err != nil {
			return fmt.Errorf("%s: datum_type: %w", path, err)
		}
		redeemerType, err := schema.ParseTypeRef(sc.RedeemerType, nil)
		if err != nil {
			return fmt.Errorf("%s: redeemer_type: %w", path, err)
		}
		if err := srv.RegisterValidator(prog, datumType, redeemerType); err != nil {
			return err
		}
		if verbose {
			fmt.Printf("Loaded validator %q from %s\n", prog.Name, path)
		}
	}

	return srv.ListenAndServe(fmt.Sprintf(":%d", port))
}

// loadRegistry builds a registry with the standard script-context
// types plus the manifest in dir, when one exists.
func loadRegistry(dir string) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if err := vm.RegisterContextTypes(reg); err != nil {
		return nil, err
	}
	if manifestExists(dir) {
		m, err := schema.LoadManifest(dir)
		if err != nil {
			return nil, err
		}
		if err := m.RegisterAll(reg); err != nil {
			return nil, err
		}
		if err := m.ValidateRefs(reg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func loadProgram(path string) (*vm.Program, error) {
	if path == "" {
		return nil, fmt.Errorf("scenario has no program")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading program: %w", err)
	}
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" {
		name = name[:len(name)-len(ext)]
	}
	return vm.ParseProgram(name, src)
}

func decodeTerm(hexStr string) (data.Term, error) {
	if hexStr == "" {
		return nil, fmt.Errorf("term is required")
	}
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("decoding hex: %w", err)
	}
	return data.DefaultCodec().Decode(raw)
}

func manifestExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "verdict.toml"))
	return err == nil
}

// resolvePath joins rel onto dir, falling back when rel is empty.
func resolvePath(dir, rel, fallback string) string {
	if rel == "" {
		return fallback
	}
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(dir, rel)
}
