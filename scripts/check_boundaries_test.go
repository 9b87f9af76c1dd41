package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModulePrefix = rootModule + "/contexts/federation/replication-service"

func TestDomainMayOnlyImportStdlibAndDomain(t *testing.T) {
	assert.Empty(t, validateDomainImport("f.go", 1, "crypto/hmac", testModulePrefix))
	assert.Empty(t, validateDomainImport("f.go", 1, testModulePrefix+"/domain/entities", testModulePrefix))
	assert.NotEmpty(t, validateDomainImport("f.go", 1, testModulePrefix+"/adapters/memory", testModulePrefix))
	assert.NotEmpty(t, validateDomainImport("f.go", 1, "gorm.io/gorm", testModulePrefix))
	assert.NotEmpty(t, validateDomainImport("f.go", 1, rootModule+"/internal/platform/config", testModulePrefix))
}

func TestApplicationMayImportContractsButNotAdapters(t *testing.T) {
	assert.Empty(t, validateApplicationImport("f.go", 1, rootModule+"/contracts/gen/federation/v1", testModulePrefix))
	assert.Empty(t, validateApplicationImport("f.go", 1, testModulePrefix+"/ports", testModulePrefix))
	assert.NotEmpty(t, validateApplicationImport("f.go", 1, testModulePrefix+"/adapters/postgres", testModulePrefix))
}

func TestPortsStayFreeOfAdapters(t *testing.T) {
	assert.Empty(t, validatePortsImport("f.go", 1, "context", testModulePrefix))
	assert.Empty(t, validatePortsImport("f.go", 1, rootModule+"/contracts/gen/events/v1", testModulePrefix))
	assert.NotEmpty(t, validatePortsImport("f.go", 1, "gorm.io/gorm", testModulePrefix))
}

func TestIsStdlib(t *testing.T) {
	assert.True(t, isStdlib("net/http"))
	assert.False(t, isStdlib("github.com/spf13/cobra"))
	assert.False(t, isStdlib(rootModule+"/contracts"))
}

func TestDomainPackagesImportDownwardOnly(t *testing.T) {
	domain := testModulePrefix + "/domain/"
	assert.Empty(t, validateDomainOrder("f.go", 1, domain+"errors", testModulePrefix, "domain/entities/peer.go"))
	assert.Empty(t, validateDomainOrder("f.go", 1, domain+"entities", testModulePrefix, "domain/services/signature.go"))
	assert.Empty(t, validateDomainOrder("f.go", 1, "strings", testModulePrefix, "domain/errors/errors.go"))
	assert.NotEmpty(t, validateDomainOrder("f.go", 1, domain+"services", testModulePrefix, "domain/entities/peer.go"))
	assert.NotEmpty(t, validateDomainOrder("f.go", 1, domain+"entities", testModulePrefix, "domain/errors/errors.go"))
}

func TestUseCasePackagesKeepTheirDirection(t *testing.T) {
	app := testModulePrefix + "/application"
	assert.Empty(t, validateUseCaseImport("f.go", 1, app+"/commands", testModulePrefix, "application/workers/reconciler.go"))
	assert.Empty(t, validateUseCaseImport("f.go", 1, app, testModulePrefix, "application/queries/get_cursor.go"))
	assert.NotEmpty(t, validateUseCaseImport("f.go", 1, app+"/commands", testModulePrefix, "application/queries/get_cursor.go"))
	assert.NotEmpty(t, validateUseCaseImport("f.go", 1, app+"/workers", testModulePrefix, "application/commands/apply_event.go"))
	assert.NotEmpty(t, validateUseCaseImport("f.go", 1, app+"/commands", testModulePrefix, "application/wire.go"))
}

func TestTransportDTOsStayStdlib(t *testing.T) {
	assert.Empty(t, validateTransportImport("f.go", 1, "time"))
	assert.NotEmpty(t, validateTransportImport("f.go", 1, testModulePrefix+"/domain/entities"))
	assert.NotEmpty(t, validateTransportImport("f.go", 1, "github.com/google/uuid"))
}

func TestAdaptersStayIndependent(t *testing.T) {
	adapters := testModulePrefix + "/adapters/"
	assert.Empty(t, validateAdapterImport("f.go", 1, testModulePrefix+"/application/commands", testModulePrefix, "adapters/http/handler.go"))
	assert.Empty(t, validateAdapterImport("f.go", 1, testModulePrefix+"/transport/http", testModulePrefix, "adapters/http/handler.go"))
	assert.NotEmpty(t, validateAdapterImport("f.go", 1, adapters+"memory", testModulePrefix, "adapters/postgres/store.go"))
	assert.NotEmpty(t, validateAdapterImport("f.go", 1, testModulePrefix+"/transport/http", testModulePrefix, "adapters/peerclient/client.go"))
	assert.NotEmpty(t, validateAdapterImport("f.go", 1, testModulePrefix+"/application/workers", testModulePrefix, "adapters/http/handler.go"))
	assert.NotEmpty(t, validateAdapterImport("f.go", 1, rootModule+"/internal/platform/config", testModulePrefix, "adapters/postgres/store.go"))
}

func TestDriversStayInTheirAdapter(t *testing.T) {
	assert.Empty(t, validateServiceImport("f.go", 1, "gorm.io/gorm", testModulePrefix, "adapters/postgres/store.go"))
	assert.Empty(t, validateServiceImport("f.go", 1, "github.com/prometheus/client_golang/prometheus", testModulePrefix, "adapters/prometheus/metrics.go"))
	assert.NotEmpty(t, validateServiceImport("f.go", 1, "github.com/jackc/pgx/v5/pgconn", testModulePrefix, "adapters/memory/store.go"))
	assert.NotEmpty(t, validateServiceImport("f.go", 1, "github.com/prometheus/client_golang/prometheus", testModulePrefix, "module.go"))
}

func TestContractsStayFreeOfServiceCode(t *testing.T) {
	assert.Empty(t, validateContractsImport("f.go", 1, "encoding/json"))
	assert.Empty(t, validateContractsImport("f.go", 1, rootModule+"/contracts/gen/events/v1"))
	assert.NotEmpty(t, validateContractsImport("f.go", 1, testModulePrefix+"/domain/entities"))
	assert.NotEmpty(t, validateContractsImport("f.go", 1, rootModule+"/internal/platform/config"))
}

func writeSource(t *testing.T, root string, rel string, imports ...string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	src := "package x\n\nimport (\n"
	for _, imp := range imports {
		src += "\t\"" + imp + "\"\n"
	}
	src += ")\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func TestCollectViolationsScansContextsAndContracts(t *testing.T) {
	root := t.TempDir()
	service := "contexts/federation/replication-service/"
	writeSource(t, root, service+"transport/http/dto.go", testModulePrefix+"/domain/entities")
	writeSource(t, root, service+"domain/entities/peer.go", testModulePrefix+"/domain/errors")
	writeSource(t, root, service+"adapters/memory/store_test.go", testModulePrefix+"/adapters/postgres")
	writeSource(t, root, "contracts/gen/federation/v1/event.go", testModulePrefix+"/domain/entities")

	violations := collectViolations(filepath.Join(root, "contexts"), filepath.Join(root, "contracts"))
	require.Len(t, violations, 2)

	files := []string{violations[0].File, violations[1].File}
	assert.ElementsMatch(t, []string{service + "transport/http/dto.go", "contracts/gen/federation/v1/event.go"}, files)
}

func TestRepositoryTreeHasNoViolations(t *testing.T) {
	assert.Empty(t, collectViolations(filepath.Join("..", "contexts"), filepath.Join("..", "contracts")))
}
