package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exo-etl/internal/domain"
	"exo-etl/internal/engine"
	"exo-etl/internal/pipeline"
	"exo-etl/internal/testutil"
)

const csvHeader = "pl_name,hostname,discoverymethod,disc_year,sy_snum,sy_pnum,sy_dist,ra,dec,pl_orbper,pl_rade,pl_bmasse,pl_eqt,st_teff,st_rad,st_mass"

// testEnv bundles the pieces a runner test needs.
type testEnv struct {
	eng       *engine.Engine
	repo      *testutil.MockRunRepo
	runner    *pipeline.Runner
	artifacts string
	rawCSV    string
}

// newTestEnv opens a fresh DuckDB store in a temp dir and writes the given
// CSV rows as the raw input. Skips the test when the DuckDB driver is not
// available in this environment.
func newTestEnv(t *testing.T, rows ...string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	eng, err := engine.Open(filepath.Join(dir, "store.duckdb"), 2)
	if err != nil {
		t.Skipf("duckdb unavailable: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	artifacts := filepath.Join(dir, "artifacts")
	require.NoError(t, os.MkdirAll(artifacts, 0o755))

	rawCSV := filepath.Join(dir, "raw.csv")
	content := csvHeader + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(rawCSV, []byte(content), 0o644))

	repo := &testutil.MockRunRepo{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		eng:       eng,
		repo:      repo,
		runner:    pipeline.NewRunner(eng, repo, artifacts, logger),
		artifacts: artifacts,
		rawCSV:    rawCSV,
	}
}

// validRow builds a fully-populated row for the given planet and host.
func validRow(planet, host, method string, year int) string {
	return strings.Join([]string{
		planet, host, method,
		strconv.Itoa(year),
		"1", "2", "12.5", "285.6", "45.1", "3.2", "1.5", "4.2", "550", "5300", "0.9", "0.95",
	}, ",")
}

func TestRefineFilterPolicy(t *testing.T) {
	env := newTestEnv(t,
		validRow("p-ok", "host-a", "Transit", 2004),
		// Missing identifiers: rejected.
		",host-a,Transit,2004,1,2,12.5,285.6,45.1,3.2,1.5,4.2,550,5300,0.9,0.95",
		"p-nohost,,Transit,2004,1,2,12.5,285.6,45.1,3.2,1.5,4.2,550,5300,0.9,0.95",
		// Discovery year out of range: rejected. Boundaries: retained.
		validRow("p-1979", "host-a", "Transit", 1979),
		validRow("p-2027", "host-a", "Transit", 2027),
		validRow("p-1980", "host-a", "Transit", 1980),
		validRow("p-2026", "host-a", "Transit", 2026),
		// Null year: retained — unknown is not invalid.
		"p-noyear,host-a,Transit,,1,2,12.5,285.6,45.1,3.2,1.5,4.2,550,5300,0.9,0.95",
		// Radius 0, negative, or above 30: rejected. Null: retained.
		"p-rad0,host-a,Transit,2004,1,2,12.5,285.6,45.1,3.2,0,4.2,550,5300,0.9,0.95",
		"p-rad35,host-a,Transit,2004,1,2,12.5,285.6,45.1,3.2,35,4.2,550,5300,0.9,0.95",
		"p-norad,host-a,Transit,2004,1,2,12.5,285.6,45.1,3.2,,4.2,550,5300,0.9,0.95",
		// Non-positive mass: rejected. Null: retained.
		"p-mass0,host-a,Transit,2004,1,2,12.5,285.6,45.1,3.2,1.5,0,550,5300,0.9,0.95",
		"p-nomass,host-a,Transit,2004,1,2,12.5,285.6,45.1,3.2,1.5,,550,5300,0.9,0.95",
	)

	ctx := context.Background()
	require.NoError(t, env.runner.Run(ctx, domain.ModeRefine, env.rawCSV))

	rows, err := env.eng.DB().QueryContext(ctx, "SELECT pl_name FROM silver_planet ORDER BY pl_name")
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, []string{"p-1980", "p-2026", "p-nomass", "p-norad", "p-noyear", "p-ok"}, names)
}

func TestModelSurrogateKeys(t *testing.T) {
	env := newTestEnv(t,
		validRow("b-1", "host-b", "Transit", 2004),
		validRow("c-1", "host-c", "Imaging", 2010),
		validRow("a-1", "host-a", "Transit", 2001),
		validRow("a-2", "host-a", "Transit", 2002),
		// Duplicate observation collapses in the fact table.
		validRow("a-2", "host-a", "Transit", 2002),
	)

	ctx := context.Background()
	require.NoError(t, env.runner.Run(ctx, domain.ModeAll, env.rawCSV))

	// Dense ids starting at 1, assigned in lexicographic host order.
	rows, err := env.eng.DB().QueryContext(ctx, "SELECT host_id, hostname FROM dim_host_sk ORDER BY host_id")
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	var ids []int64
	var hosts []string
	for rows.Next() {
		var id int64
		var host string
		require.NoError(t, rows.Scan(&id, &host))
		ids = append(ids, id)
		hosts = append(hosts, host)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, []string{"host-a", "host-b", "host-c"}, hosts)

	// No join fan-out: surrogate fact row count equals natural fact count.
	factRows, err := env.eng.Count(ctx, "fact_planet")
	require.NoError(t, err)
	skRows, err := env.eng.Count(ctx, "fact_planet_sk")
	require.NoError(t, err)
	assert.Equal(t, int64(4), factRows)
	assert.Equal(t, factRows, skRows)

	// Referential completeness: every fact host_id resolves to exactly one
	// dimension row.
	var unresolved int64
	err = env.eng.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM fact_planet_sk f
		LEFT JOIN dim_host_sk d ON f.host_id = d.host_id
		WHERE d.host_id IS NULL`).Scan(&unresolved)
	require.NoError(t, err)
	assert.Zero(t, unresolved)
}

func TestKeplerHostsFullChain(t *testing.T) {
	env := newTestEnv(t,
		validRow("Kepler-10 b", "Kepler-10", "Transit", 2011),
		validRow("Kepler-11 b", "Kepler-11", "Transit", 2010),
		// Radius 35 is out of bounds and must be filtered.
		"Kepler-11 c,Kepler-11,Transit,2010,1,2,12.5,285.6,45.1,3.2,35,4.2,550,5300,0.9,0.95",
	)

	ctx := context.Background()
	require.NoError(t, env.runner.Run(ctx, domain.ModeAll, env.rawCSV))

	silverRows, err := env.eng.Count(ctx, "silver_planet")
	require.NoError(t, err)
	assert.Equal(t, int64(2), silverRows)

	rows, err := env.eng.DB().QueryContext(ctx, "SELECT host_id, hostname FROM dim_host_sk ORDER BY host_id")
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	type dimRow struct {
		id   int64
		host string
	}
	var dims []dimRow
	for rows.Next() {
		var d dimRow
		require.NoError(t, rows.Scan(&d.id, &d.host))
		dims = append(dims, d)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []dimRow{{1, "Kepler-10"}, {2, "Kepler-11"}}, dims)

	hostRows, err := env.eng.DB().QueryContext(ctx, "SELECT hostname, n_planets FROM gold_by_host")
	require.NoError(t, err)
	defer hostRows.Close() //nolint:errcheck

	counts := map[string]int64{}
	for hostRows.Next() {
		var host string
		var n int64
		require.NoError(t, hostRows.Scan(&host, &n))
		counts[host] = n
	}
	require.NoError(t, hostRows.Err())
	assert.Equal(t, map[string]int64{"Kepler-10": 1, "Kepler-11": 1}, counts)
}

func TestMethodAggregateOrdering(t *testing.T) {
	env := newTestEnv(t,
		validRow("t-1", "host-a", "Transit", 2001),
		validRow("t-2", "host-b", "Transit", 2005),
		validRow("t-3", "host-c", "Transit", 2012),
		validRow("rv-1", "host-d", "Radial Velocity", 1995),
	)

	ctx := context.Background()
	require.NoError(t, env.runner.Run(ctx, domain.ModeAll, env.rawCSV))

	rows, err := env.eng.DB().QueryContext(ctx,
		"SELECT discoverymethod, n_planets, first_year, last_year FROM gold_by_discoverymethod")
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	type methodRow struct {
		method              string
		n                   int64
		firstYear, lastYear int64
	}
	var got []methodRow
	for rows.Next() {
		var m methodRow
		require.NoError(t, rows.Scan(&m.method, &m.n, &m.firstYear, &m.lastYear))
		got = append(got, m)
	}
	require.NoError(t, rows.Err())

	// Descending planet count: the larger method group comes first.
	require.Len(t, got, 2)
	assert.Equal(t, methodRow{"Transit", 3, 2001, 2012}, got[0])
	assert.Equal(t, methodRow{"Radial Velocity", 1, 1995, 1995}, got[1])
}

func TestFullChainIdempotent(t *testing.T) {
	env := newTestEnv(t,
		validRow("a-1", "host-a", "Transit", 2001),
		validRow("b-1", "host-b", "Imaging", 2010),
		validRow("b-2", "host-b", "Transit", 2015),
	)

	ctx := context.Background()
	require.NoError(t, env.runner.Run(ctx, domain.ModeAll, env.rawCSV))

	first := map[string][]byte{}
	for _, name := range []string{"gold_by_discoverymethod.csv", "gold_by_host.csv"} {
		data, err := os.ReadFile(filepath.Join(env.artifacts, name))
		require.NoError(t, err)
		require.NotEmpty(t, data)
		first[name] = data
	}

	require.NoError(t, env.runner.Run(ctx, domain.ModeAll, env.rawCSV))

	for name, want := range first {
		data, err := os.ReadFile(filepath.Join(env.artifacts, name))
		require.NoError(t, err)
		assert.Equal(t, want, data, "%s must be byte-identical across reruns", name)
	}
}

func TestMissingUpstream(t *testing.T) {
	tests := []struct {
		name string
		mode domain.Mode
	}{
		{name: "model_before_refine", mode: domain.ModeModel},
		{name: "aggregate_before_model", mode: domain.ModeAggregate},
		{name: "export_before_aggregate", mode: domain.ModeExport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, validRow("a-1", "host-a", "Transit", 2001))

			ctx := context.Background()
			err := env.runner.Run(ctx, tt.mode, env.rawCSV)
			require.Error(t, err)
			assert.ErrorAs(t, err, new(*domain.MissingUpstreamError))

			// The failed stage made no catalog changes.
			for _, table := range []string{"silver_planet", "dim_host_full", "fact_planet", "dim_host_sk", "fact_planet_sk"} {
				exists, err := env.eng.TableExists(ctx, table)
				require.NoError(t, err)
				assert.False(t, exists, "table %s must not exist", table)
			}

			assert.Equal(t, domain.RunStatusFailed, env.repo.LastRun().Status)
		})
	}
}

func TestMissingRawCSV(t *testing.T) {
	env := newTestEnv(t, validRow("a-1", "host-a", "Transit", 2001))

	err := env.runner.Run(context.Background(), domain.ModeAll, env.rawCSV+".nope")
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*domain.MissingInputError))
}

func TestRunHistoryRecorded(t *testing.T) {
	env := newTestEnv(t, validRow("a-1", "host-a", "Transit", 2001))

	ctx := context.Background()
	require.NoError(t, env.runner.Run(ctx, domain.ModeAll, env.rawCSV))

	run := env.repo.LastRun()
	require.NotNil(t, run)
	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.Equal(t, domain.ModeAll, run.Mode)

	assert.Equal(t, []domain.Stage{
		domain.StageBindSource,
		domain.StageRefine,
		domain.StageModel,
		domain.StageAggregate,
		domain.StageExport,
	}, env.repo.StagesRecorded())

	for _, sr := range env.repo.StageRuns {
		assert.Equal(t, domain.RunStatusSuccess, sr.Status, "stage %s", sr.Stage)
		if sr.Stage == domain.StageRefine {
			assert.Equal(t, map[string]int64{"silver_planet": 1}, sr.RowCounts)
		}
	}
}

func TestStageSelectionRunsChainPiecewise(t *testing.T) {
	env := newTestEnv(t,
		validRow("a-1", "host-a", "Transit", 2001),
		validRow("b-1", "host-b", "Imaging", 2010),
	)

	ctx := context.Background()
	for _, mode := range []domain.Mode{domain.ModeRefine, domain.ModeModel, domain.ModeAggregate, domain.ModeExport} {
		require.NoError(t, env.runner.Run(ctx, mode, env.rawCSV), "mode %s", mode)
	}

	for _, name := range []string{"gold_by_discoverymethod.csv", "gold_by_host.csv"} {
		_, err := os.Stat(filepath.Join(env.artifacts, name))
		assert.NoError(t, err)
	}
}
