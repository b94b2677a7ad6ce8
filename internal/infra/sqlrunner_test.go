package infra

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

func TestExtractMarker(t *testing.T) {
	cases := []struct {
		name    string
		query   string
		marker  string
		body    string
		wantErr bool
	}{
		{
			name:   "valid",
			query:  "--sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db\nselect 1;",
			marker: "4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db",
			body:   "select 1;",
		},
		{
			name:   "leading whitespace",
			query:  "\n  --sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db\nselect 1;\n",
			marker: "4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db",
			body:   "select 1;",
		},
		{name: "missing marker", query: "select 1;", wantErr: true},
		{name: "bad uuid", query: "--sql not-a-uuid\nselect 1;", wantErr: true},
		{name: "marker mid-query", query: "select 1;\n--sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := ExtractMarker(tc.query)
			if tc.wantErr {
				if !errors.Is(err, ErrMissingMarker) {
					t.Fatalf("err = %v, want ErrMissingMarker", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if marker != tc.marker || body != tc.body {
				t.Fatalf("got (%q, %q), want (%q, %q)", marker, body, tc.marker, tc.body)
			}
		})
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)) {
		t.Fatal("wrapped ErrNoRows not detected")
	}
	if IsNoRows(fmt.Errorf("other")) {
		t.Fatal("unexpected match")
	}
}

func TestObserveLevels(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		slow  time.Duration
		level string
	}{
		{name: "fast ok", slow: time.Hour, level: "debug"},
		{name: "no rows is not an error", err: pgx.ErrNoRows, slow: time.Hour, level: "debug"},
		{name: "failure", err: errors.New("deadlock detected"), slow: time.Hour, level: "error"},
		{name: "slow", slow: time.Nanosecond, level: "warn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := &SQLRunner{Logger: zerolog.New(&buf), SlowQuery: tc.slow}
			r.observe("4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db", "exec", time.Now().Add(-time.Millisecond), tc.err).Send()

			var line map[string]any
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("decode log line %q: %v", buf.String(), err)
			}
			if line["level"] != tc.level {
				t.Fatalf("level = %v, want %s", line["level"], tc.level)
			}
			if line["sql"] != "4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db" || line["op"] != "exec" {
				t.Fatalf("missing fields: %v", line)
			}
		})
	}
}
