package appointment

import (
	"strings"
	"time"
)

var sortColumns = map[string]string{
	"start":     "start_at",
	"end":       "end_at",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"status":    "status",
}

// sqlDialect adapts the shared query builders to a driver.
type sqlDialect struct {
	placeholder func(n int) string
	timeArg     func(t time.Time) any
	idArg       func(v any) any
}

type whereBuilder struct {
	d     sqlDialect
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", w.d.placeholder(len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func conflictWhere(d sqlDialect, q ConflictQuery) *whereBuilder {
	w := &whereBuilder{d: d}
	w.add("status <> 'cancelled'")
	w.add("start_at < ?", d.timeArg(q.Range.End))
	w.add("end_at > ?", d.timeArg(q.Range.Start))
	w.add("(provider_id = ? OR patient_id = ?)", q.ProviderID, d.idArg(q.PatientID))
	if q.ExcludeID != nil {
		w.add("id <> ?", d.idArg(*q.ExcludeID))
	}
	return w
}

func busyWhere(d sqlDialect, providerID string, window TimeRange) *whereBuilder {
	w := &whereBuilder{d: d}
	w.add("provider_id = ?", providerID)
	w.add("status <> 'cancelled'")
	w.add("start_at < ?", d.timeArg(window.End))
	w.add("end_at > ?", d.timeArg(window.Start))
	return w
}

func listWhere(d sqlDialect, f ListFilter) *whereBuilder {
	w := &whereBuilder{d: d}
	if f.PatientID != nil {
		w.add("patient_id = ?", d.idArg(*f.PatientID))
	}
	if f.ProviderID != "" {
		w.add("provider_id = ?", f.ProviderID)
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	switch {
	case f.Date != nil:
		day := *f.Date
		w.add("start_at < ?", d.timeArg(day.Add(24*time.Hour)))
		w.add("end_at > ?", d.timeArg(day))
	case f.From != nil || f.To != nil:
		if f.From != nil {
			w.add("end_at > ?", d.timeArg(*f.From))
		}
		if f.To != nil {
			w.add("start_at < ?", d.timeArg(*f.To))
		}
	}
	return w
}

func listOrder(f ListFilter) string {
	col, ok := sortColumns[f.Sort]
	if !ok {
		col = "start_at"
	}
	dir := "ASC"
	if f.Order == "desc" {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir + ", id " + dir
}
