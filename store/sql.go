// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/peterlynch/caliper/model"
)

// schema is valid for SQLite, MySQL and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS caliper_runs (
		id VARCHAR(64) PRIMARY KEY,
		suite VARCHAR(255) NOT NULL,
		started VARCHAR(64) NOT NULL,
		data TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS caliper_results (
		run_id VARCHAR(64) NOT NULL,
		local_name VARCHAR(64) NOT NULL,
		scenario VARCHAR(64) NOT NULL,
		instrument VARCHAR(64) NOT NULL,
		benchmark VARCHAR(255) NOT NULL,
		vm VARCHAR(255) NOT NULL,
		parameters TEXT NOT NULL,
		measurements TEXT NOT NULL,
		PRIMARY KEY (run_id, local_name)
	)`,
}

// A SQLStore saves runs in a SQL database. The whole run is stored as
// JSON in caliper_runs; caliper_results holds one row per result for
// querying.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL opens the database and creates the tables if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLStore{db: db, driver: driver}
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s schema: %w", driver, err)
		}
	}
	return s, nil
}

// rebind rewrites ? placeholders for drivers that number them.
func (s *SQLStore) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (s *SQLStore) Save(ctx context.Context, run *model.Run) (string, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return "", err
	}
	scenarios := make(map[string]*model.Scenario)
	for _, sc := range run.Scenarios {
		scenarios[sc.LocalName] = sc
	}
	vms := make(map[string]string)
	for _, vm := range run.VMs {
		vms[vm.LocalName] = vm.Name
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO caliper_runs (id, suite, started, data) VALUES (?, ?, ?, ?)`),
		run.ID, run.Suite, run.Timestamp.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	insert := s.rebind(`INSERT INTO caliper_results
		(run_id, local_name, scenario, instrument, benchmark, vm, parameters, measurements)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, r := range run.Results {
		sc := scenarios[r.ScenarioLocalName]
		if sc == nil {
			return "", fmt.Errorf("result %s refers to unknown scenario %q", r.LocalName, r.ScenarioLocalName)
		}
		params := make(map[string]string, len(sc.UserParameters)+len(sc.VMArguments))
		for k, v := range sc.UserParameters {
			params[k] = v
		}
		for k, v := range sc.VMArguments {
			params[k] = v
		}
		pj, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		mj, err := json.Marshal(r.Measurements)
		if err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx, insert, run.ID, r.LocalName, r.ScenarioLocalName, r.InstrumentLocalName,
			sc.BenchmarkMethodName, vms[sc.VMLocalName], string(pj), string(mj)); err != nil {
			return "", fmt.Errorf("inserting result %s: %w", r.LocalName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s run %s", s.driver, run.ID), nil
}

// Load returns the run with the given ID.
func (s *SQLStore) Load(ctx context.Context, id string) (*model.Run, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data FROM caliper_runs WHERE id = ?`), id).Scan(&data)
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	run := new(model.Run)
	if err := json.Unmarshal([]byte(data), run); err != nil {
		return nil, err
	}
	return run, nil
}

// CountResults returns the number of result rows stored for run id.
func (s *SQLStore) CountResults(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM caliper_results WHERE run_id = ?`), id).Scan(&n)
	return n, err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
