package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// rootModule is the go.mod module path; imports under it are first-party.
const rootModule = "fedsync"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// driverOwners pins each storage or telemetry driver to the one adapter
// allowed to import it.
var driverOwners = map[string]string{
	"gorm.io/":                             "adapters/postgres",
	"github.com/jackc/pgx/":                "adapters/postgres",
	"github.com/prometheus/client_golang/": "adapters/prometheus",
}

// domainOrder lists domain packages from the bottom up. A package may only
// import the ones before it.
var domainOrder = []string{"errors", "entities", "services"}

func main() {
	violations := collectViolations("contexts", "contracts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Line == violations[j].Line {
				return violations[i].Import < violations[j].Import
			}
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

// collectViolations walks each root and checks every non-test Go file. Paths
// are matched relative to the root's parent, so fixtures under a temp dir
// resolve the same way as the repository tree.
func collectViolations(roots ...string) []violation {
	var violations []violation
	for _, root := range roots {
		base := filepath.Dir(filepath.Clean(root))
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			rel, err := filepath.Rel(base, path)
			if err != nil {
				return nil
			}
			violations = append(violations, checkFile(path, filepath.ToSlash(rel))...)
			return nil
		})
	}
	return violations
}

func checkFile(path string, rel string) []violation {
	parts := strings.Split(rel, "/")
	switch {
	case parts[0] == "contracts":
		return validateFile(path, rel, func(line int, importPath string) []violation {
			return validateContractsImport(rel, line, importPath)
		})
	case parts[0] == "contexts" && len(parts) >= 4:
		modulePrefix := fmt.Sprintf("%s/contexts/%s/%s", rootModule, parts[1], parts[2])
		location := strings.Join(parts[3:], "/")
		return validateFile(path, rel, func(line int, importPath string) []violation {
			return validateServiceImport(rel, line, importPath, modulePrefix, location)
		})
	}
	return nil
}

func validateFile(path string, rel string, check func(line int, importPath string) []violation) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: rel, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		violations = append(violations, check(fset.Position(imp.Pos()).Line, importPath)...)
	}
	return violations
}

// validateServiceImport applies the rules for one file inside a service.
// location is the file path below the service root, e.g. "adapters/http/handler.go".
func validateServiceImport(file string, line int, importPath string, modulePrefix string, location string) []violation {
	var violations []violation
	add := func(rule string) {
		violations = append(violations, violation{File: file, Line: line, Import: importPath, Rule: rule})
	}

	if strings.HasPrefix(importPath, rootModule+"/contexts/") && !hasPrefix(importPath, modulePrefix) {
		add("cross-module imports are forbidden")
	}
	if owner, ok := driverOwner(importPath); ok && !strings.HasPrefix(location, owner+"/") {
		add("driver is owned by " + owner)
	}

	layer, _, _ := strings.Cut(location, "/")
	switch layer {
	case "domain":
		violations = append(violations, validateDomainImport(file, line, importPath, modulePrefix)...)
		violations = append(violations, validateDomainOrder(file, line, importPath, modulePrefix, location)...)
	case "application":
		violations = append(violations, validateApplicationImport(file, line, importPath, modulePrefix)...)
		violations = append(violations, validateUseCaseImport(file, line, importPath, modulePrefix, location)...)
	case "ports":
		violations = append(violations, validatePortsImport(file, line, importPath, modulePrefix)...)
	case "transport":
		violations = append(violations, validateTransportImport(file, line, importPath)...)
	case "adapters":
		violations = append(violations, validateAdapterImport(file, line, importPath, modulePrefix, location)...)
	default:
		// module.go is the composition root and may wire any layer of its
		// own service.
		if isRuntimeInfrastructure(importPath) {
			add("composition root must not import runtime infrastructure")
		}
	}
	return violations
}

func validateDomainImport(file string, line int, importPath string, modulePrefix string) []violation {
	var violations []violation

	if strings.Contains(importPath, "/adapters/") {
		violations = append(violations, violation{
			File:   file,
			Line:   line,
			Import: importPath,
			Rule:   "domain must not import adapters",
		})
	}

	if isRuntimeInfrastructure(importPath) {
		violations = append(violations, violation{
			File:   file,
			Line:   line,
			Import: importPath,
			Rule:   "domain must not import runtime infrastructure",
		})
	}

	if !isStdlib(importPath) && !hasPrefix(importPath, modulePrefix+"/domain") {
		violations = append(violations, violation{
			File:   file,
			Line:   line,
			Import: importPath,
			Rule:   "domain import is outside explicit allowlist",
		})
	}

	return violations
}

// validateDomainOrder keeps errors below entities and entities below
// services.
func validateDomainOrder(file string, line int, importPath string, modulePrefix string, location string) []violation {
	from := indexOf(domainOrder, segment(location, 1))
	target := strings.TrimPrefix(importPath, modulePrefix+"/domain/")
	if from < 0 || target == importPath {
		return nil
	}
	to := indexOf(domainOrder, segment(target, 0))
	if to >= 0 && to < from {
		return nil
	}
	return []violation{{
		File:   file,
		Line:   line,
		Import: importPath,
		Rule:   "domain/" + domainOrder[from] + " may only import lower domain packages",
	}}
}

func validateApplicationImport(file string, line int, importPath string, modulePrefix string) []violation {
	var violations []violation

	if strings.Contains(importPath, "/adapters/") {
		violations = append(violations, violation{
			File:   file,
			Line:   line,
			Import: importPath,
			Rule:   "application must not import adapters",
		})
	}

	if isRuntimeInfrastructure(importPath) {
		violations = append(violations, violation{
			File:   file,
			Line:   line,
			Import: importPath,
			Rule:   "application must not import runtime infrastructure",
		})
	}

	allowed := []string{
		modulePrefix + "/application",
		modulePrefix + "/domain",
		modulePrefix + "/ports",
		rootModule + "/contracts",
	}
	if !isStdlib(importPath) && !isAllowed(importPath, allowed) {
		violations = append(violations, violation{
			File:   file,
			Line:   line,
			Import: importPath,
			Rule:   "application import is outside explicit allowlist",
		})
	}

	return violations
}

// validateUseCaseImport orders the application packages: the shared
// application package knows no use case, queries never call commands, and
// only workers may drive commands.
func validateUseCaseImport(file string, line int, importPath string, modulePrefix string, location string) []violation {
	target := strings.TrimPrefix(importPath, modulePrefix+"/application/")
	if target == importPath {
		return nil
	}
	from := segment(location, 1)
	if strings.HasSuffix(from, ".go") {
		from = ""
	}
	to := segment(target, 0)

	var rule string
	switch {
	case from == "":
		rule = "shared application package must not import use cases"
	case to == "workers" && from != "workers":
		rule = "only workers may import workers"
	case from == "queries" && to != "queries":
		rule = "queries must not import commands"
	}
	if rule == "" {
		return nil
	}
	return []violation{{File: file, Line: line, Import: importPath, Rule: rule}}
}

// validatePortsImport keeps port interfaces expressed in domain and contract
// types only.
func validatePortsImport(file string, line int, importPath string, modulePrefix string) []violation {
	allowed := []string{
		modulePrefix + "/domain",
		rootModule + "/contracts",
	}
	if isStdlib(importPath) || isAllowed(importPath, allowed) {
		return nil
	}
	return []violation{{
		File:   file,
		Line:   line,
		Import: importPath,
		Rule:   "ports may only reference domain and contract types",
	}}
}

// Transport DTOs are the documented HTTP bodies. They stay plain structs.
func validateTransportImport(file string, line int, importPath string) []violation {
	if isStdlib(importPath) {
		return nil
	}
	return []violation{{
		File:   file,
		Line:   line,
		Import: importPath,
		Rule:   "transport DTOs may only import the standard library",
	}}
}

func validateAdapterImport(file string, line int, importPath string, modulePrefix string, location string) []violation {
	var violations []violation
	add := func(rule string) {
		violations = append(violations, violation{File: file, Line: line, Import: importPath, Rule: rule})
	}

	if isRuntimeInfrastructure(importPath) {
		add("adapters must not import runtime infrastructure")
	}
	if hasPrefix(importPath, modulePrefix+"/application/workers") {
		add("adapters must not import background workers")
	}
	own := modulePrefix + "/adapters/" + segment(location, 1)
	if hasPrefix(importPath, modulePrefix+"/adapters") && !hasPrefix(importPath, own) {
		add("adapters must not import sibling adapters")
	}
	if hasPrefix(importPath, modulePrefix+"/transport") && segment(location, 1) != "http" {
		add("only the http adapter may import transport DTOs")
	}
	return violations
}

// validateContractsImport keeps generated wire types free of service code so
// both peers can share them.
func validateContractsImport(file string, line int, importPath string) []violation {
	if isStdlib(importPath) || hasPrefix(importPath, rootModule+"/contracts") {
		return nil
	}
	return []violation{{
		File:   file,
		Line:   line,
		Import: importPath,
		Rule:   "contracts may only import the standard library and other contracts",
	}}
}

func driverOwner(importPath string) (string, bool) {
	for prefix, owner := range driverOwners {
		if strings.HasPrefix(importPath, prefix) {
			return owner, true
		}
	}
	return "", false
}

func isRuntimeInfrastructure(importPath string) bool {
	return strings.HasPrefix(importPath, rootModule+"/internal/") ||
		strings.HasPrefix(importPath, rootModule+"/cmd/")
}

func segment(path string, index int) string {
	parts := strings.Split(path, "/")
	if index >= len(parts) {
		return ""
	}
	return parts[index]
}

func indexOf(values []string, value string) int {
	for i, v := range values {
		if v == value {
			return i
		}
	}
	return -1
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, rootModule) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
