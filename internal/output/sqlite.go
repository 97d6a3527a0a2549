package output

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
DROP TABLE IF EXISTS adverse_effects;
DROP TABLE IF EXISTS drugs;

CREATE TABLE drugs (
  id INTEGER PRIMARY KEY,
  drug_name TEXT NOT NULL,
  label_id TEXT,
  set_id TEXT,
  source TEXT NOT NULL,
  model TEXT,
  dropped_rows INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_drugs_name ON drugs(drug_name);

CREATE TABLE adverse_effects (
  drug_id INTEGER NOT NULL REFERENCES drugs(id),
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  percentage REAL NOT NULL,
  placebo REAL,
  PRIMARY KEY (drug_id, position)
);
CREATE INDEX idx_adverse_effects_name ON adverse_effects(name);
`

// WriteSQLite writes the aggregate in long form: one drugs row per result
// and one adverse_effects row per effect. Existing tables are replaced.
func (a *Aggregate) WriteSQLite(path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	drugStmt, err := tx.Prepare(`INSERT INTO drugs (id, drug_name, label_id, set_id, source, model, dropped_rows) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare drugs: %w", err)
	}
	defer func() { _ = drugStmt.Close() }()

	effectStmt, err := tx.Prepare(`INSERT INTO adverse_effects (drug_id, position, name, percentage, placebo) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare adverse_effects: %w", err)
	}
	defer func() { _ = effectStmt.Close() }()

	for i, d := range a.Drugs {
		id := i + 1
		if _, err := drugStmt.Exec(id, d.DrugName, nullString(d.LabelID), nullString(d.SetID), string(d.Source), nullString(d.Model), d.DroppedRows); err != nil {
			return fmt.Errorf("insert drug %s: %w", d.DrugName, err)
		}
		for pos, e := range d.Effects {
			var placebo sql.NullFloat64
			if e.Placebo != nil {
				placebo = sql.NullFloat64{Float64: *e.Placebo, Valid: true}
			}
			if _, err := effectStmt.Exec(id, pos, e.Name, e.Percentage, placebo); err != nil {
				return fmt.Errorf("insert effect %s/%s: %w", d.DrugName, e.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
