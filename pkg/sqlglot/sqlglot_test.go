package sqlglot

import "testing"

func TestValidateRejectsUnbalancedParens(t *testing.T) {
	svc := NewService(DialectPostgres)
	res := svc.Validate("SELECT * FROM orders WHERE (id = 1", DialectPostgres)
	if res.IsValid {
		t.Fatalf("expected invalid result for unbalanced parens")
	}
}

func TestValidateAcceptsSimpleSelect(t *testing.T) {
	svc := NewService(DialectPostgres)
	res := svc.Validate("select id, name from customers where id = 1", DialectPostgres)
	if !res.IsValid {
		t.Fatalf("expected valid result, got error: %s", res.ErrorMessage)
	}
	if res.NormalizedSQL == "" {
		t.Fatalf("expected normalized SQL on success")
	}
}

func TestTranspileTopToLimit(t *testing.T) {
	svc := NewService(DialectTSQL)
	res := svc.Transpile("SELECT TOP(10) id FROM orders", DialectTSQL, DialectPostgres, false)
	if !containsAll(res.SQL, "LIMIT", "10") {
		t.Fatalf("expected LIMIT 10 in transpiled SQL, got %q", res.SQL)
	}
}

func TestTranspileLimitToTop(t *testing.T) {
	svc := NewService(DialectPostgres)
	res := svc.Transpile("SELECT id FROM orders LIMIT 5", DialectPostgres, DialectTSQL, false)
	if !containsAll(res.SQL, "TOP", "5") {
		t.Fatalf("expected TOP(5) in transpiled SQL, got %q", res.SQL)
	}
}

func TestMetadataDetectsJoinsAndAggregations(t *testing.T) {
	svc := NewService(DialectPostgres)
	meta := svc.Metadata(
		"SELECT c.name, SUM(o.amount) FROM orders o JOIN customers c ON o.customer_id = c.customer_id GROUP BY c.name",
		DialectPostgres,
	)
	if !meta.HasJoins {
		t.Fatalf("expected HasJoins=true")
	}
	if !meta.HasAggregations {
		t.Fatalf("expected HasAggregations=true")
	}
	foundOrders, foundCustomers := false, false
	for _, tbl := range meta.Tables {
		if tbl == "orders" {
			foundOrders = true
		}
		if tbl == "customers" {
			foundCustomers = true
		}
	}
	if !foundOrders || !foundCustomers {
		t.Fatalf("expected both tables detected, got %v", meta.Tables)
	}
}

func TestMetadataDetectsSubquery(t *testing.T) {
	svc := NewService(DialectPostgres)
	meta := svc.Metadata("SELECT id FROM orders WHERE customer_id IN (SELECT customer_id FROM customers)", DialectPostgres)
	if !meta.HasSubqueries {
		t.Fatalf("expected HasSubqueries=true")
	}
}

func TestAssistErrorSuggestsLimitForTopSyntaxError(t *testing.T) {
	svc := NewService(DialectPostgres)
	res := svc.AssistError("SELECT TOP 10 id FROM orders", "syntax error at or near \"TOP\"", DialectPostgres)
	if len(res.LikelyCauses) == 0 {
		t.Fatalf("expected at least one likely cause")
	}
	found := false
	for _, f := range res.SuggestedFixes {
		if f == "Replace T-SQL TOP with LIMIT" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected TOP->LIMIT suggestion, got %v", res.SuggestedFixes)
	}
}

func TestAutoTranspileDetectsBracketedIdentifiers(t *testing.T) {
	svc := NewService(DialectPostgres)
	res := svc.AutoTranspile("SELECT TOP(5) [id] FROM [orders]", DialectPostgres, false)
	if !containsAll(res.SQL, "LIMIT", "5") {
		t.Fatalf("expected auto-detected T-SQL source transpiled to LIMIT form, got %q", res.SQL)
	}
}

func containsAll(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (sub == "" || indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
