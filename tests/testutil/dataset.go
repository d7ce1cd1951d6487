package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loom-data/loomtest/internal/db"
)

// initialLoadedAt is the newest updated_at in the canned dataset. Freshness
// tests move the high-water mark forward from here with SetLastLoadedAt.
var initialLoadedAt = time.Date(2016, 9, 19, 14, 45, 51, 0, time.UTC)

// sourcesSeedSQL builds the raw tables the source definitions point at.
// The {schema} placeholder is substituted per test run.
const sourcesSeedSQL = `
create table {schema}."source" (
	favorite_color text,
	id integer,
	first_name text,
	email text,
	ip_address text,
	updated_at timestamp without time zone
);

insert into {schema}."source" (favorite_color, id, first_name, email, ip_address, updated_at) values
('blue',  1, 'Larry',  'lking0@miitbeian.gov.cn', '69.135.206.194', '2008-09-12 19:08:31'),
('blue',  2, 'Larry',  'lperkins1@toplist.cz',    '64.210.133.162', '1978-05-09 04:15:14'),
('blue',  3, 'Anna',   'amontgomery2@miitbeian.gov.cn', '168.104.64.114', '2011-10-16 04:07:57'),
('blue',  4, 'Sandra', 'sgeorge3@livejournal.com', '229.235.252.98', '1973-07-19 10:52:43'),
('blue',  5, 'Fred',   'fwoods4@google.cn',       '78.229.170.124', '2012-09-30 16:38:29'),
('green', 6, 'Stephen','shanson5@livejournal.com', '182.227.157.105', '1995-11-07 21:40:50'),
('green', 7, 'William','wmartinez6@upenn.edu',    '135.139.249.50',  '1982-09-05 03:11:59'),
('green', 8, 'Clara',  'cdean7@google.nl',        '68.229.204.156',  '2013-09-01 06:20:24'),
('green', 9, 'Phillip','pclark8@usnews.com',      '156.91.162.82',   '1998-03-19 00:58:46'),
('green',10, 'Elizabeth','ebaker9@plala.or.jp',   '100.107.178.148', '2016-09-19 14:45:51');

create table {schema}.other_table (
	id integer,
	updated_at timestamp without time zone
);

insert into {schema}.other_table (id, updated_at) values
(1, '2016-09-19 14:45:51'),
(2, '2016-09-19 14:45:51');

create table {schema}.other_source_table (
	id integer,
	letter text
);

insert into {schema}.other_source_table (id, letter) values
(1, 'a'),
(2, 'b');
`

// SeedSourceTables creates and populates the raw tables the suites'
// source definitions refer to.
func (h *Harness) SeedSourceTables() {
	h.T.Helper()

	ctx := context.Background()
	for _, stmt := range strings.Split(sourcesSeedSQL, ";") {
		if err := db.RunSQL(ctx, h.DB.Pool, stmt, h.Project.Schema, h.Project.Database); err != nil {
			h.T.Fatalf("seed source tables: %v", err)
		}
	}
}

// SetLastLoadedAt inserts a fresh row into the source table with updated_at
// at now+delta, moving the freshness high-water mark. It refuses to move
// the mark backwards, which would make the resulting status ambiguous.
func (h *Harness) SetLastLoadedAt(delta time.Duration) time.Time {
	h.T.Helper()

	ts := time.Now().UTC().Add(delta).Truncate(time.Second)
	if ts.Before(h.lastLoadedAt) {
		h.T.Fatalf("SetLastLoadedAt(%s) would move the mark backwards: %s is before %s",
			delta, ts.Format(time.RFC3339), h.lastLoadedAt.Format(time.RFC3339))
	}

	insert := fmt.Sprintf(
		`insert into %s (favorite_color, id, first_name, email, ip_address, updated_at)
		 values ('pink', $1, 'Jake', 'jake@example.com', '127.0.0.1', $2)`,
		db.QuoteQualified(h.Project.Schema, "source"),
	)
	if _, err := h.DB.Pool.Exec(context.Background(), insert, h.nextID, ts); err != nil {
		h.T.Fatalf("insert source row: %v", err)
	}
	h.nextID++
	h.lastLoadedAt = ts
	return ts
}

// LastLoadedAt returns the current freshness high-water mark.
func (h *Harness) LastLoadedAt() time.Time {
	return h.lastLoadedAt
}
