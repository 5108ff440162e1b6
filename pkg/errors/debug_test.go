package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpCollectsChainAndCode(t *testing.T) {
	err := fmt.Errorf("generate slots: %w", Wrap(CodeDependency, stdErrors.New("connection reset"), "insert slots"))
	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %q", d.Code)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if d.PGCode != "" {
		t.Fatalf("unexpected pg code %q", d.PGCode)
	}
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_time_slots_provider_start", TableName: "time_slots"}
	d := Dump(fmt.Errorf("insert: %w", pgxErr))
	if d.PGCode != "23505" || d.PGConstraint != "ux_time_slots_provider_start" || d.PGTable != "time_slots" {
		t.Fatalf("unexpected pgx dump: %+v", d)
	}

	pqErr := &pq.Error{Code: "23P01", Constraint: "ex_time_slots_provider_range"}
	if got := PGCode(pqErr); got != "23P01" {
		t.Fatalf("expected exclusion code, got %q", got)
	}
	if got := PGCode(stdErrors.New("plain")); got != "" {
		t.Fatalf("expected empty code, got %q", got)
	}
}
