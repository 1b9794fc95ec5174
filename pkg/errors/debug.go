package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/multierr"
)

// ErrorDump is the log-friendly view of an error tree.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`
	PG         PGFields `json:"pg,omitempty"`
}

// PGFields carries the postgres diagnostics of the first driver error found,
// whether it came from pgx or lib/pq.
type PGFields struct {
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Dump walks err depth first, following fmt wrapping and joined errors from
// errors.Join or multierr.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	walk(err, func(e error) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	})
	d.PG = pgFields(err)
	return d
}

// Fields flattens the dump for structured logging, omitting empty values.
func (d ErrorDump) Fields() map[string]any {
	out := map[string]any{"error": d.TopMessage}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("error_code", string(d.Code))
	if len(d.Chain) > 1 {
		out["error_chain"] = d.Chain
	}
	set("pg_code", d.PG.Code)
	set("pg_constraint", d.PG.Constraint)
	set("pg_table", d.PG.Table)
	set("pg_detail", d.PG.Detail)
	return out
}

func walk(err error, visit func(error)) {
	if err == nil {
		return
	}
	visit(err)
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			walk(e, visit)
		}
		return
	}
	if errs := multierr.Errors(err); len(errs) > 1 {
		for _, e := range errs {
			walk(e, visit)
		}
		return
	}
	walk(errors.Unwrap(err), visit)
}

func pgFields(err error) PGFields {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGFields{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return PGFields{}
}
