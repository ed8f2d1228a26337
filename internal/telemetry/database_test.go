package telemetry

import "testing"

func TestWithSearchPath(t *testing.T) {
	t.Run("appends search_path to url", func(t *testing.T) {
		got, err := withSearchPath("postgres://u:p@localhost:5432/db?sslmode=disable", "storefront")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "postgres://u:p@localhost:5432/db?search_path=storefront&sslmode=disable"
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("leaves dsn untouched without schema", func(t *testing.T) {
		got, err := withSearchPath("postgres://localhost/db", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "postgres://localhost/db" {
			t.Errorf("unexpected dsn: %s", got)
		}
	})
}
