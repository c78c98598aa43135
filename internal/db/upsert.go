package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// MergeSpec describes a keyed merge of staged rows into a table.
type MergeSpec struct {
	Table   string   // target table, optionally schema-qualified
	Columns []string // columns present in each row
	Keys    []string // columns of the unique constraint rows are matched on
	Update  []string // columns overwritten on match; nil means every non-key column
}

func (s MergeSpec) validate() error {
	if s.Table == "" {
		return eris.New("db: merge: no table specified")
	}
	if len(s.Columns) == 0 {
		return eris.New("db: merge: no columns specified")
	}
	if len(s.Keys) == 0 {
		return eris.New("db: merge: no conflict keys specified")
	}
	for _, k := range s.Keys {
		if !slices.Contains(s.Columns, k) {
			return eris.Errorf("db: merge: key %q is not a column", k)
		}
	}
	return nil
}

func (s MergeSpec) updateColumns() []string {
	if s.Update != nil {
		return s.Update
	}
	var cols []string
	for _, c := range s.Columns {
		if !slices.Contains(s.Keys, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// Merge stages rows in a temp table with COPY and merges them into the
// target with INSERT ... ON CONFLICT. Matched rows whose update columns are
// unchanged are left alone, so the returned count covers only inserted or
// modified rows. q must be a transaction: the staging table drops on commit.
func Merge(ctx context.Context, q Querier, spec MergeSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := spec.validate(); err != nil {
		return 0, err
	}

	stagingName := "_merge_" + strings.ReplaceAll(spec.Table, ".", "_")
	staging := pgx.Identifier{stagingName}.Sanitize()
	target := sanitizeTable(spec.Table)

	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP", staging, target)
	if _, err := q.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: merge: stage %s", spec.Table)
	}

	if _, err := q.CopyFrom(ctx, pgx.Identifier{stagingName}, spec.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: merge: COPY into staging for %s", spec.Table)
	}

	tag, err := q.Exec(ctx, mergeSQL(spec, target, staging))
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge: INSERT ON CONFLICT for %s", spec.Table)
	}
	return tag.RowsAffected(), nil
}

func mergeSQL(spec MergeSpec, target, staging string) string {
	cols := quoteAndJoin(spec.Columns)
	keys := quoteAndJoin(spec.Keys)

	update := spec.updateColumns()
	if len(update) == 0 {
		return fmt.Sprintf("INSERT INTO %s AS t (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING",
			target, cols, cols, staging, keys)
	}

	set := make([]string, len(update))
	current := make([]string, len(update))
	incoming := make([]string, len(update))
	for i, c := range update {
		id := pgx.Identifier{c}.Sanitize()
		set[i] = id + " = EXCLUDED." + id
		current[i] = "t." + id
		incoming[i] = "EXCLUDED." + id
	}
	return fmt.Sprintf(
		"INSERT INTO %s AS t (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s WHERE (%s) IS DISTINCT FROM (%s)",
		target, cols, cols, staging, keys,
		strings.Join(set, ", "),
		strings.Join(current, ", "),
		strings.Join(incoming, ", "),
	)
}

// sanitizeTable handles schema-qualified table names like "public.premises".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
