package serializer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jaswdr/faker"
)

func TestFormatLiteral(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"nil", nil, "NULL"},
		{"string", "lorem", "'lorem'"},
		{"embedded quote", "O'Brien", "'O''Brien'"},
		{"only quotes", "''", "''''''"},
		{"bytes", []byte("it's"), `'\x69742773'`},
		{"binary bytes", []byte{0xde, 0xad, 0x5c, 0x00, 0xff}, `'\xdead5c00ff'`},
		{"int64", int64(42), "42"},
		{"int", 1, "1"},
		{"negative", int32(-7), "-7"},
		{"float", 12.5, "12.5"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"date", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), "'2020-01-02 00:00:00Z'"},
		{"timestamp", time.Date(2020, 1, 2, 3, 4, 5, 600000000, time.UTC), "'2020-01-02 03:04:05.6Z'"},
		{"timestamptz", time.Date(2020, 1, 2, 3, 4, 5, 0, time.FixedZone("AEST", 10*3600)), "'2020-01-02 03:04:05+10:00'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLiteral(tt.value); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestWriteScriptExample(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]interface{}{
		{"id": int64(1), "email": "<generated>"},
	}

	if err := WriteScript(&buf, "public.users", []string{"id", "email"}, rows); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := "DELETE FROM public.users;\n" +
		"INSERT INTO public.users (\"id\", \"email\")\n" +
		"VALUES\n" +
		"(1, '<generated>')\n"
	if buf.String() != want {
		t.Errorf("Expected script:\n%s\ngot:\n%s", want, buf.String())
	}
}

func TestWriteScriptMultipleRows(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]interface{}{
		{"id": int64(1), "name": "O'Brien", "note": nil},
		{"id": int64(2), "name": "Smith", "note": "vip"},
		{"id": int64(3), "name": "Jones", "note": nil},
	}

	if err := WriteScript(&buf, "crm.contacts", []string{"id", "name", "note"}, rows); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	want := []string{
		"DELETE FROM crm.contacts;",
		`INSERT INTO crm.contacts ("id", "name", "note")`,
		"VALUES",
		"(1, 'O''Brien', NULL),",
		"(2, 'Smith', 'vip'),",
		"(3, 'Jones', NULL)",
	}
	if len(lines) != len(want) {
		t.Fatalf("Expected %d lines, got %d: %q", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestWriteScriptNoRows(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteScript(&buf, "public.users", []string{"id"}, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if buf.String() != "SELECT 'No rows to load'\n" {
		t.Errorf("Expected only the no-op statement, got %q", buf.String())
	}
}

func TestWriteScriptReservedUserColumn(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]interface{}{
		{"current_user": "bob"},
	}

	if err := WriteScript(&buf, "my_schema_name.my_table_name", []string{"user"}, rows); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := "DELETE FROM my_schema_name.my_table_name;\n" +
		"INSERT INTO my_schema_name.my_table_name (\"user\")\n" +
		"VALUES\n" +
		"('bob')\n"
	if buf.String() != want {
		t.Errorf("Expected script:\n%s\ngot:\n%s", want, buf.String())
	}
}

func TestWriteScriptUserColumnUnderItsOwnName(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]interface{}{
		{"id": int64(1), "user": "O'Brien"},
		{"id": int64(2), "user": nil},
	}

	if err := WriteScript(&buf, "public.logins", []string{"id", "user"}, rows); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	want := "DELETE FROM public.logins;\n" +
		"INSERT INTO public.logins (\"id\", \"user\")\n" +
		"VALUES\n" +
		"(1, 'O''Brien'),\n" +
		"(2, NULL)\n"
	if buf.String() != want {
		t.Errorf("Expected script:\n%s\ngot:\n%s", want, buf.String())
	}
}

func TestWriteScriptBinaryValuesStayUTF8(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]interface{}{
		{"id": int64(1), "payload": []byte{0xde, 0xad, 0x5c, 0x00, 0xff}},
	}

	if err := WriteScript(&buf, "public.blobs", []string{"id", "payload"}, rows); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !utf8.Valid(buf.Bytes()) || bytes.IndexByte(buf.Bytes(), 0) >= 0 {
		t.Errorf("Expected a UTF-8 script without NUL bytes, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `(1, '\xdead5c00ff')`) {
		t.Errorf("Expected a hex bytea literal, got %q", buf.String())
	}
}

func TestWriteScriptFollowsColumnOrderNotRowOrder(t *testing.T) {
	// Masked columns are selected last but must be inserted in natural order
	tuple := FormatTuple(map[string]interface{}{"email": "x", "id": int64(5), "age": int64(30)}, []string{"id", "email", "age"})
	if tuple != "(5, 'x', 30)" {
		t.Errorf("Expected (5, 'x', 30), got %s", tuple)
	}
}

func TestQuotedValuesRoundTrip(t *testing.T) {
	f := faker.New()
	for i := 0; i < 50; i++ {
		original := "O'" + f.Person().LastName() + " '" + f.Lorem().Word() + "'"
		literal := FormatLiteral(original)
		if got := unquoteLiteral(t, literal); got != original {
			t.Errorf("Expected %q to round trip, got %q", original, got)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteScriptPropagatesWriteErrors(t *testing.T) {
	rows := []map[string]interface{}{{"id": int64(1)}}
	if err := WriteScript(failingWriter{}, "public.users", []string{"id"}, rows); err == nil {
		t.Error("Expected a write error, got nil")
	}
}

func TestQuoteIdentifiers(t *testing.T) {
	got := QuoteIdentifiers([]string{"id", "user", "Mixed Case"})
	want := []string{`"id"`, `"user"`, `"Mixed Case"`}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %s, got %s", want[i], got[i])
		}
	}
}

// unquoteLiteral reverses QuoteLiteral the way PostgreSQL reads a string constant
func unquoteLiteral(t *testing.T, literal string) string {
	t.Helper()
	if len(literal) < 2 || literal[0] != '\'' || literal[len(literal)-1] != '\'' {
		t.Fatalf("Not a quoted literal: %s", literal)
	}
	body := literal[1 : len(literal)-1]
	if strings.Count(strings.ReplaceAll(body, "''", ""), "'") != 0 {
		t.Fatalf("Literal contains an unescaped quote: %s", literal)
	}
	return strings.ReplaceAll(body, "''", "'")
}
