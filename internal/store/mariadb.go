package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"arkoon-rule-exporter/internal/model"

	_ "github.com/go-sql-driver/mysql"
)

const DefaultTable = "arkoon_rule"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MariaDBStore archives exported rule sets, one row per rule, keyed by the
// firewall hostname.
type MariaDBStore struct {
	db    *sql.DB
	table string
}

func NewMariaDBStore(ctx context.Context, dsn, table string) (*MariaDBStore, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &MariaDBStore{db: db, table: table}, nil
}

// NewStore wraps an already opened handle.
func NewStore(db *sql.DB, table string) (*MariaDBStore, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &MariaDBStore{db: db, table: table}, nil
}

func (s *MariaDBStore) Close() error {
	return s.db.Close()
}

func (s *MariaDBStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		id BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		hostname VARCHAR(255) NOT NULL,
		seq_num INT NOT NULL,
		enabled VARCHAR(16) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		sources LONGTEXT NOT NULL,
		destinations LONGTEXT NOT NULL,
		services LONGTEXT NOT NULL,
		action VARCHAR(16) NOT NULL,
		log TEXT NOT NULL,
		nat VARCHAR(16) NOT NULL,
		pat VARCHAR(16) NOT NULL,
		exported_at DATETIME NOT NULL,
		KEY idx_hostname (hostname)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// SaveRules replaces the rules stored for hostname in a single transaction.
func (s *MariaDBStore) SaveRules(ctx context.Context, hostname string, exportedAt time.Time, rules []model.Rule) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+s.table+" WHERE hostname = ?", hostname); err != nil {
		return fmt.Errorf("failed to clear rules for %s: %w", hostname, err)
	}

	insert := "INSERT INTO " + s.table +
		" (hostname, seq_num, enabled, name, description, sources, destinations, services, action, log, nat, pat, exported_at)" +
		" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	for _, r := range rules {
		var srcJSON, dstJSON, svcJSON []byte
		if srcJSON, err = json.Marshal(r.Sources); err != nil {
			return err
		}
		if dstJSON, err = json.Marshal(r.Destinations); err != nil {
			return err
		}
		if svcJSON, err = json.Marshal(r.Services); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, insert,
			hostname, r.ID, r.Enabled, r.Name, r.Description,
			string(srcJSON), string(dstJSON), string(svcJSON),
			string(r.Action), r.Log, r.NAT, r.PAT, exportedAt,
		); err != nil {
			return fmt.Errorf("failed to insert rule %d: %w", r.ID, err)
		}
	}

	return tx.Commit()
}
