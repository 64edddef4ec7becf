// Package clickhouse reads and writes LOB snapshots held in ClickHouse.
package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/johaankjis/Market-Microstructure-Alpha-Signal-Research/services/lob"
)

type Config struct {
	DSN         string        `yaml:"dsn"`
	Addr        string        `yaml:"addr"`
	Database    string        `yaml:"database"`
	Table       string        `yaml:"table"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:9000",
		Database:    "market",
		Table:       "lob_snapshots",
		Username:    "default",
		DialTimeout: 10 * time.Second,
	}
}

// Enabled reports whether a server address was configured at all.
func (c Config) Enabled() bool { return c.DSN != "" || c.Addr != "" }

func (c Config) options() (*ch.Options, error) {
	if c.DSN != "" {
		opts, err := ch.ParseDSN(c.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		return opts, nil
	}
	return &ch.Options{
		Addr: []string{c.Addr},
		Auth: ch.Auth{
			Database: c.Database,
			Username: c.Username,
			Password: c.Password,
		},
		DialTimeout: c.DialTimeout,
		Settings: ch.Settings{
			"max_execution_time": uint64(0),
		},
	}, nil
}

// Rows is the part of driver.Rows the scanner needs.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Source serves snapshots from a table with one Array(Float64) column per
// book side and quantity.
type Source struct {
	conn   driver.Conn
	cfg    Config
	logger *zap.Logger
}

// Open connects and pings the server.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	logger.Info("Connected to ClickHouse", zap.Strings("addr", opts.Addr), zap.String("table", cfg.qualifiedTable()))
	return &Source{conn: conn, cfg: cfg, logger: logger}, nil
}

func (s *Source) Close() error { return s.conn.Close() }

// EnsureSchema creates the database and snapshot table when missing.
func (s *Source) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.cfg.database())); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	return s.conn.Exec(ctx, schemaDDL(s.cfg.qualifiedTable()))
}

func schemaDDL(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol LowCardinality(String),
			ts Int64,
			bid_prices Array(Float64),
			bid_sizes Array(Float64),
			ask_prices Array(Float64),
			ask_sizes Array(Float64),
			mid_price Float64,
			spread Float64
		)
		ENGINE = ReplacingMergeTree
		ORDER BY (symbol, ts)
	`, table)
}

// Snapshots loads one symbol ordered by time. from and to are inclusive
// millisecond bounds; zero leaves that side open.
func (s *Source) Snapshots(ctx context.Context, symbol string, from, to int64) ([]lob.Snapshot, error) {
	query, args := snapshotQuery(s.cfg.qualifiedTable(), symbol, from, to)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Loaded snapshots", zap.String("symbol", symbol), zap.Int("rows", len(snaps)))
	return snaps, nil
}

// Symbols lists the distinct symbols in the table.
func (s *Source) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, fmt.Sprintf("SELECT DISTINCT symbol FROM %s ORDER BY symbol", s.cfg.qualifiedTable()))
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func snapshotQuery(table, symbol string, from, to int64) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, `
		SELECT symbol, ts, bid_prices, bid_sizes, ask_prices, ask_sizes, mid_price, spread
		FROM %s
		WHERE symbol = ?`, table)
	args := []any{symbol}
	if from != 0 {
		b.WriteString(" AND ts >= ?")
		args = append(args, from)
	}
	if to != 0 {
		b.WriteString(" AND ts <= ?")
		args = append(args, to)
	}
	b.WriteString(" ORDER BY ts")
	return b.String(), args
}

func scanSnapshots(rows Rows) ([]lob.Snapshot, error) {
	defer rows.Close()
	var out []lob.Snapshot
	for rows.Next() {
		var (
			snap                   lob.Snapshot
			bidP, bidS, askP, askS []float64
		)
		if err := rows.Scan(&snap.Symbol, &snap.Timestamp, &bidP, &bidS, &askP, &askS, &snap.MidPrice, &snap.Spread); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		copy(snap.BidPrices[:], bidP)
		copy(snap.BidSizes[:], bidS)
		copy(snap.AskPrices[:], askP)
		copy(snap.AskSizes[:], askS)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func (c Config) database() string {
	if c.Database == "" {
		return "default"
	}
	return c.Database
}

func (c Config) qualifiedTable() string {
	table := c.Table
	if table == "" {
		table = "lob_snapshots"
	}
	return c.database() + "." + table
}
