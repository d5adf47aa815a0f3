package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/fatih/color"

	"github.com/fixturesnap/fixturesnap/internal/config"
	"github.com/fixturesnap/fixturesnap/internal/database"
	"github.com/fixturesnap/fixturesnap/internal/fingerprint"
	"github.com/fixturesnap/fixturesnap/internal/naming"
	"github.com/fixturesnap/fixturesnap/internal/serialize"
	"github.com/fixturesnap/fixturesnap/internal/types"
)

// Builder runs one fixture build: clean, populate, name, write, hook.
// A single Builder performs a single build; there is no guarding against
// concurrent builds and exclusive access to the database and fixtures
// directory is assumed.
type Builder struct {
	cfg      *config.Config
	adapter  database.Adapter
	tracker  *fingerprint.Tracker
	resolver *naming.Resolver
}

func New(cfg *config.Config, adapter database.Adapter) *Builder {
	return &Builder{
		cfg:      cfg,
		adapter:  adapter,
		tracker:  fingerprint.New(cfg),
		resolver: naming.New(cfg),
	}
}

// Generate rebuilds the fixture set when tracked inputs changed, or always
// when forced. A skipped build performs no fixture writes; it only refreshes
// the fingerprint opportunistically (mtime digests drift after checkouts).
func (b *Builder) Generate(ctx context.Context, force bool) error {
	rebuild := force
	if !rebuild {
		stale, err := b.tracker.ShouldRebuild()
		if err != nil {
			return fmt.Errorf("failed to check fingerprint: %w", err)
		}
		rebuild = stale
	}

	if !rebuild {
		color.Green("✓ Fixtures are up to date")
		if err := b.tracker.Record(); err != nil {
			color.Yellow("⚠️  Could not refresh fingerprint: %v", err)
		}
		return nil
	}

	tables, err := b.trackedTables(ctx)
	if err != nil {
		return err
	}

	if err := b.clean(ctx, tables); err != nil {
		return err
	}

	records := NewRecords()
	if err := b.populate(ctx, records); err != nil {
		// Diagnostics were already printed. No fixture writes and no
		// fingerprint update happen past this point, so the next run
		// retries a full rebuild.
		return err
	}

	written, err := b.write(ctx, tables, records)
	if err != nil {
		return err
	}

	if b.cfg.AfterBuild != nil {
		if err := b.cfg.AfterBuild(); err != nil {
			return fmt.Errorf("after-build hook failed: %w", err)
		}
	}

	if err := b.tracker.Record(); err != nil {
		return err
	}

	color.Green("✓ Wrote %d fixture file(s)", len(written))
	return nil
}

// trackedTables resolves the table set: the configured list, or every
// non-internal table in the schema.
func (b *Builder) trackedTables(ctx context.Context) ([]string, error) {
	if len(b.cfg.Tables) > 0 {
		return b.cfg.Tables, nil
	}

	all, err := b.adapter.AllTableNames(ctx)
	if err != nil {
		return nil, err
	}

	tables := make([]string, 0, len(all))
	for _, table := range all {
		// Leading underscore marks internal bookkeeping tables.
		if strings.HasPrefix(table, "_") {
			continue
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// clean deletes all rows from every tracked table with referential integrity
// suspended, then removes existing fixture files best-effort. Without a
// population step the build snapshots whatever the database holds, so rows
// are left alone.
func (b *Builder) clean(ctx context.Context, tables []string) error {
	if b.cfg.Populate != nil {
		restore, err := b.adapter.SuspendReferentialIntegrity(ctx)
		if err != nil {
			return err
		}

		var deleteErr error
		for _, table := range tables {
			if err := b.adapter.DeleteAllRows(ctx, table); err != nil {
				deleteErr = err
				break
			}
		}

		if err := restore(); err != nil && deleteErr == nil {
			deleteErr = fmt.Errorf("failed to restore referential integrity: %w", err)
		}
		if deleteErr != nil {
			return deleteErr
		}
	}

	for _, table := range tables {
		if err := os.Remove(b.fixturePath(table)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove fixture file for %s: %w", table, err)
		}
	}
	return nil
}

// populate runs the user-supplied population step with error and panic
// containment. Any failure is diagnosed once (message plus stack) and aborts
// the build before anything is written.
func (b *Builder) populate(ctx context.Context, records *Records) (err error) {
	if b.cfg.Populate == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("population panicked: %v", r)
			color.Red("❌ Fixture population failed: %v", r)
			fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
		}
	}()

	if err := b.cfg.Populate(ctx, b.adapter.DB(), records); err != nil {
		color.Red("❌ Fixture population failed: %v", err)
		fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
		return fmt.Errorf("population failed: %w", err)
	}
	return nil
}

// write dumps every tracked table to its own fixture file. Dates and
// timestamps render in engine-native layouts for the whole pass.
func (b *Builder) write(ctx context.Context, tables []string, records *Records) ([]string, error) {
	release := serialize.AcquireNativeFormats()
	defer release()

	var written []string

	if b.cfg.WriteEmptyFiles {
		// Emit a file per table up front so every tracked table has a
		// deterministic artifact even with zero rows.
		for _, table := range tables {
			if err := b.writeFixture(types.FixtureTable{Name: table}); err != nil {
				return nil, err
			}
			written = append(written, b.fixturePath(table))
		}
	}

	for _, table := range tables {
		fixture, err := b.dumpTable(ctx, table, records)
		if err != nil {
			return nil, err
		}
		if len(fixture.Rows) == 0 {
			continue
		}
		if err := b.writeFixture(fixture); err != nil {
			return nil, err
		}
		if !b.cfg.WriteEmptyFiles {
			written = append(written, b.fixturePath(table))
		}
		color.Cyan("📄 %s: %d record(s)", filepath.Base(b.fixturePath(table)), len(fixture.Rows))
	}

	return written, nil
}

// dumpTable re-queries all rows ordered by primary key and resolves a unique
// fixture key per row. Registered names win over rule and name-column
// resolution; duplicate keys get a disambiguation suffix instead of silently
// overwriting the earlier record.
func (b *Builder) dumpTable(ctx context.Context, table string, records *Records) (types.FixtureTable, error) {
	fixture := types.FixtureTable{Name: table}

	columns, err := b.adapter.TableColumns(ctx, table)
	if err != nil {
		return fixture, err
	}
	if len(columns) == 0 {
		return fixture, nil
	}

	schemaTable := types.SchemaTable{Name: table, Columns: columns}
	rows, err := b.adapter.TableRows(ctx, schemaTable)
	if err != nil {
		return fixture, err
	}

	serializer := serialize.New(schemaTable)
	seen := make(map[string]int, len(rows))

	for i, row := range rows {
		key, registered := records.NameFor(table, row)
		if !registered {
			key = b.resolver.Resolve(table, serialize.AttributeMap(row), i)
		}

		if n, dup := seen[key]; dup {
			seen[key] = n + 1
			forced := fmt.Sprintf("%s_dup%03d", key, n)
			color.Yellow("⚠️  Duplicate fixture key %q in %s, renamed to %q", key, table, forced)
			key = forced
		} else {
			seen[key] = 1
		}

		attrs, err := serializer.SerializeRow(schemaTable, row)
		if err != nil {
			return fixture, fmt.Errorf("table %s: %w", table, err)
		}
		fixture.Rows = append(fixture.Rows, types.NamedRow{Key: key, Attributes: attrs})
	}

	return fixture, nil
}

func (b *Builder) writeFixture(fixture types.FixtureTable) error {
	f, err := os.Create(b.fixturePath(fixture.Name))
	if err != nil {
		return fmt.Errorf("failed to create fixture file for %s: %w", fixture.Name, err)
	}
	defer f.Close()

	return serialize.EncodeFixture(f, fixture)
}

func (b *Builder) fixturePath(table string) string {
	return filepath.Join(b.cfg.FixturesDir, table+".yml")
}
