package extract

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mustDecode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("test fixture is not JSON: %v", err)
	}
	return v
}

// ════════════════════════════════════════════════════════════════════
// Fast path
// ════════════════════════════════════════════════════════════════════

func TestExtractFastPath(t *testing.T) {
	inputs := []string{
		`{"name":"S&P 500","value":"5,431.60","isPositive":true}`,
		`[{"value":1},{"value":2.5}]`,
		`  {"nested":{"a":[1,[2,{"b":null}]]}}  `,
		`[]`,
		`{}`,
	}
	for _, in := range inputs {
		got, err := Value(in)
		if err != nil {
			t.Fatalf("Value(%q): %v", in, err)
		}
		if want := mustDecode(t, in); !reflect.DeepEqual(got, want) {
			t.Errorf("Value(%q) = %#v, want %#v", in, got, want)
		}
	}
}

func TestExtractFastPathReturnsTrimmedText(t *testing.T) {
	raw, err := Extract("\n\t[1, 2, 3]\n")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "[1, 2, 3]" {
		t.Fatalf("raw: got %q", raw)
	}
}

// ════════════════════════════════════════════════════════════════════
// Markdown unwrap
// ════════════════════════════════════════════════════════════════════

func TestExtractMarkdownFence(t *testing.T) {
	value := `[{"title":"Fed holds rates","source":"Reuters"}]`
	wrapped := "Sure! Here are the stories:\n```json\n" + value + "\n```\nLet me know if you need more."

	got, err := Value(wrapped)
	if err != nil {
		t.Fatal(err)
	}
	want, err := Value(value)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("fenced: got %#v, want %#v", got, want)
	}
}

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", "  {\"a\":1}  ", `{"a":1}`},
		{"json tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"upper tag", "```JSON {\"a\":1} ```", `{"a":1}`},
		{"untagged", "text ```\n[1]\n``` more", `[1]`},
		{"unclosed", "```json\n{\"a\":1}", `{"a":1}`},
		{"first block wins", "```json\n[1]\n```\n```json\n[2]\n```", `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Unwrap(tt.in); got != tt.want {
				t.Errorf("Unwrap() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Noise tolerance
// ════════════════════════════════════════════════════════════════════

func TestExtractSurroundingProse(t *testing.T) {
	value := `{"companyName":"Apple Inc.","chartData":[{"dateTime":"2024-06-10","price":193.12}]}`
	got, err := Value("Here is the data: " + value + " Hope that helps!")
	if err != nil {
		t.Fatal(err)
	}
	if want := mustDecode(t, value); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestExtractTrailingBracesInProse(t *testing.T) {
	// The last-brace heuristic would swallow the trailing "{sic}".
	got, err := Value(`Result: {"a": 1} -- note {sic}`)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, map[string]any{"a": 1.0}) {
		t.Fatalf("got %#v", got)
	}
}

func TestExtractPicksEarlierDelimiter(t *testing.T) {
	raw, err := Extract(`prefix [ {"a": 1}, {"b": 2} ] suffix {"c": 3}`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "[") || !strings.HasSuffix(string(raw), "]") {
		t.Fatalf("expected array, got %s", raw)
	}

	raw, err = Extract(`prefix {"list": [1, 2]} suffix [3]`)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"list": [1, 2]}` {
		t.Fatalf("expected object, got %s", raw)
	}
}

// ════════════════════════════════════════════════════════════════════
// String-content immunity
// ════════════════════════════════════════════════════════════════════

func TestExtractBracketsInsideStrings(t *testing.T) {
	value := `{"note": "a {weird} [string] with \"quotes\""}`
	got, err := Value("Output follows. " + value + " end")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"note": `a {weird} [string] with "quotes"`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestExtractEscapedBackslashBeforeQuote(t *testing.T) {
	// "C:\\" ends the string; the following } closes the object.
	value := `{"path": "C:\\", "next": "}"}`
	got, err := Value("noise " + value + " noise")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"path": `C:\`, "next": "}"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestExtractUnicodeContent(t *testing.T) {
	value := `{"name":"日経平均","change":"−1.2%","note":"✓ [ok]"}`
	got, err := Value("→ " + value + " ←")
	if err != nil {
		t.Fatal(err)
	}
	if want := mustDecode(t, value); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Failures
// ════════════════════════════════════════════════════════════════════

func TestExtractUnterminated(t *testing.T) {
	_, err := Extract(`{"a": 1`)
	if !errors.Is(err, ErrUnterminatedStructure) {
		t.Fatalf("expected ErrUnterminatedStructure, got %v", err)
	}

	_, err = Extract(`data: [{"a": "unclosed string]}`)
	if !errors.Is(err, ErrUnterminatedStructure) {
		t.Fatalf("expected ErrUnterminatedStructure for open string, got %v", err)
	}
}

func TestExtractNoJSON(t *testing.T) {
	for _, in := range []string{"sorry, I cannot help with that", "", "   ", "```json\n```"} {
		_, err := Extract(in)
		if !errors.Is(err, ErrNoJSONFound) {
			t.Errorf("Extract(%q): expected ErrNoJSONFound, got %v", in, err)
		}
	}
}

func TestExtractMalformedCarriesSnippet(t *testing.T) {
	_, err := Extract(`Here: {"a": 1, "b": } thanks`)
	if !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("expected ErrMalformedJSON, got %v", err)
	}
	var me *MalformedJSONError
	if !errors.As(err, &me) {
		t.Fatalf("expected *MalformedJSONError, got %T", err)
	}
	if me.Snippet != `{"a": 1, "b": }` {
		t.Fatalf("snippet: got %q", me.Snippet)
	}
	if me.Unwrap() == nil {
		t.Fatal("expected wrapped decode error")
	}
}

func TestExtractMismatchedKindsIsMalformed(t *testing.T) {
	_, err := Extract(`x {"a": [1, 2} y`)
	if !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("expected ErrMalformedJSON, got %v", err)
	}
}

func TestIntoDecodesTypedValue(t *testing.T) {
	var out []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := Into("```json\n[{\"name\":\"P/E\",\"value\":\"31.2\"}]\n```", &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Name != "P/E" || out[0].Value != "31.2" {
		t.Fatalf("got %+v", out)
	}
}

func TestIntoShapeMismatchIsMalformed(t *testing.T) {
	var out []string
	err := Into(`{"not": "an array"}`, &out)
	if !errors.Is(err, ErrMalformedJSON) {
		t.Fatalf("expected ErrMalformedJSON, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Scanner state
// ════════════════════════════════════════════════════════════════════

func TestMatchClose(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{`{}`, 1},
		{`[[]]`, 3},
		{`{"a":"}"}`, 8},
		{`{"a":"\""}`, 9},
		{`[{"x":[1,{"y":"]"}]}] tail`, 20},
	}
	for _, tt := range tests {
		got, err := matchClose(tt.in, 0)
		if err != nil {
			t.Errorf("matchClose(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("matchClose(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestScanStateEscapeConsumesOneByte(t *testing.T) {
	st := scanState{inString: true}
	for _, c := range []byte(`\\"`) {
		st.step(c)
	}
	if st.inString {
		t.Fatal(`\\ followed by " should close the string`)
	}

	st = scanState{inString: true}
	for _, c := range []byte(`\"`) {
		st.step(c)
	}
	if !st.inString || st.escape {
		t.Fatalf(`\" should not close the string: %+v`, st)
	}
}

func TestMalformedErrorTruncatesSnippet(t *testing.T) {
	e := &MalformedJSONError{Snippet: strings.Repeat("x", 500), Err: errors.New("boom")}
	if len(e.Error()) > 300 {
		t.Fatalf("error message too long: %d", len(e.Error()))
	}
}
