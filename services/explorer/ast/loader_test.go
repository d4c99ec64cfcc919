package ast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

// Test source samples (embedded, no file I/O unless noted).
const (
	testCSimple = `int add(int a, int b) { return a + b; }`

	testCTwoDecls = "int a;\nint b;\n"

	testCppQualified = `struct Account {
  int id;
  int sum(int a, int b) const;
};

int Account::sum(int a, int b) const { return a + b; }
`

	testTSFunction = `export function greet(name: string): string {
  return "hello " + name;
}
`

	// Invalid UTF-8 bytes
	testInvalidUTF8 = "\xff\xfe"
)

// walkNodes applies fn to every node of the tree in document order.
func walkNodes(root *Node, fn func(*Node)) {
	if root == nil {
		return
	}
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

func findNodeType(root *Node, nodeType string) *Node {
	var found *Node
	walkNodes(root, func(n *Node) {
		if found == nil && n.Type == nodeType {
			found = n
		}
	})
	return found
}

func TestLoader_ParseSource_C(t *testing.T) {
	loader := NewLoader(t.TempDir(), nil)

	tree, err := loader.ParseSource(context.Background(), []byte(testCSimple), "add.c", "c")
	if err != nil {
		t.Fatalf("ParseSource() error: %v", err)
	}

	if tree.FilePath != "add.c" {
		t.Errorf("FilePath = %q, want %q", tree.FilePath, "add.c")
	}
	if tree.Language != "c" {
		t.Errorf("Language = %q, want %q", tree.Language, "c")
	}
	if tree.Root == nil {
		t.Fatal("nil root")
	}
	if tree.Root.Type != "translation_unit" {
		t.Errorf("root type = %q, want translation_unit", tree.Root.Type)
	}
	if tree.Root.StartPosition.Row != 0 || tree.Root.StartPosition.Column != 0 {
		t.Errorf("root start = %+v, want row 0 col 0", tree.Root.StartPosition)
	}
	if findNodeType(tree.Root, "function_definition") == nil {
		t.Error("expected a function_definition node")
	}
}

func TestLoader_ParseSource_CppQualified(t *testing.T) {
	loader := NewLoader(t.TempDir(), nil)

	tree, err := loader.ParseSource(context.Background(), []byte(testCppQualified), "acc.cpp", "cpp")
	if err != nil {
		t.Fatalf("ParseSource() error: %v", err)
	}

	if findNodeType(tree.Root, "struct_specifier") == nil {
		t.Error("expected a struct_specifier node")
	}
	qid := findNodeType(tree.Root, "qualified_identifier")
	if qid == nil {
		t.Fatal("expected a qualified_identifier node for Account::sum")
	}
	if !strings.Contains(qid.Sample, "Account::sum") {
		t.Errorf("qualified identifier sample = %q, want to contain Account::sum", qid.Sample)
	}
}

func TestLoader_ParseSource_TypeScript(t *testing.T) {
	loader := NewLoader(t.TempDir(), nil)

	tree, err := loader.ParseSource(context.Background(), []byte(testTSFunction), "greet.ts", "typescript")
	if err != nil {
		t.Fatalf("ParseSource() error: %v", err)
	}

	if tree.Root.Type != "program" {
		t.Errorf("root type = %q, want program", tree.Root.Type)
	}
	if findNodeType(tree.Root, "function_declaration") == nil {
		t.Error("expected a function_declaration node")
	}
}

func TestLoader_ParseSource_UnknownLanguage(t *testing.T) {
	loader := NewLoader(t.TempDir(), nil)

	_, err := loader.ParseSource(context.Background(), []byte(testCSimple), "add.cob", "cobol")
	if !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("error = %v, want ErrUnsupportedExtension", err)
	}
}

func TestLoader_ParseSource_InvalidUTF8(t *testing.T) {
	loader := NewLoader(t.TempDir(), nil)

	_, err := loader.ParseSource(context.Background(), []byte(testInvalidUTF8), "bad.c", "c")
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("error = %v, want ErrInvalidUTF8", err)
	}
}

func TestLoader_Parse_File(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "acc.cpp"), []byte(testCppQualified), 0640); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(root, nil)
	tree, err := loader.Parse(context.Background(), "src/acc.cpp")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if tree.FilePath != "src/acc.cpp" {
		t.Errorf("FilePath = %q, want forward-slash relative path", tree.FilePath)
	}
	if tree.Language != "cpp" {
		t.Errorf("Language = %q, want cpp", tree.Language)
	}
}

func TestLoader_Parse_UnsupportedExtension(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0640); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(root, nil)
	_, err := loader.Parse(context.Background(), "notes.txt")
	if !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("error = %v, want ErrUnsupportedExtension", err)
	}
}

func TestLoader_Parse_MissingFile(t *testing.T) {
	loader := NewLoader(t.TempDir(), nil)

	_, err := loader.Parse(context.Background(), "ghost.c")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoader_Parse_FileTooLarge(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "big.c"), []byte(testCppQualified), 0640); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(root, nil, WithMaxFileSize(16))
	_, err := loader.Parse(context.Background(), "big.c")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestLoader_Parse_CanceledContext(t *testing.T) {
	loader := NewLoader(t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.ParseSource(ctx, []byte(testCSimple), "add.c", "c")
	if err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestLoader_NamedNodesOnly(t *testing.T) {
	loader := NewLoader(t.TempDir(), nil)

	tree, err := loader.ParseSource(context.Background(), []byte(testCSimple), "add.c", "c")
	if err != nil {
		t.Fatalf("ParseSource() error: %v", err)
	}

	punctuation := map[string]bool{"(": true, ")": true, "{": true, "}": true, ";": true, ",": true}
	walkNodes(tree.Root, func(n *Node) {
		if punctuation[n.Type] {
			t.Errorf("tree contains anonymous punctuation node %q", n.Type)
		}
	})
}

func TestLoader_RowsAreZeroBased(t *testing.T) {
	loader := NewLoader(t.TempDir(), nil)

	tree, err := loader.ParseSource(context.Background(), []byte(testCTwoDecls), "two.c", "c")
	if err != nil {
		t.Fatalf("ParseSource() error: %v", err)
	}
	if len(tree.Root.Children) < 2 {
		t.Fatalf("expected 2 declarations, got %d children", len(tree.Root.Children))
	}
	if tree.Root.Children[0].StartPosition.Row != 0 {
		t.Errorf("first declaration row = %d, want 0", tree.Root.Children[0].StartPosition.Row)
	}
	if tree.Root.Children[1].StartPosition.Row != 1 {
		t.Errorf("second declaration row = %d, want 1", tree.Root.Children[1].StartPosition.Row)
	}
}

func TestLoader_SampleTruncatedTo200Runes(t *testing.T) {
	long := "int x; // " + strings.Repeat("a", 500)
	loader := NewLoader(t.TempDir(), nil)

	tree, err := loader.ParseSource(context.Background(), []byte(long), "long.c", "c")
	if err != nil {
		t.Fatalf("ParseSource() error: %v", err)
	}

	if got := utf8.RuneCountInString(tree.Root.Sample); got != SampleLimit {
		t.Errorf("root sample length = %d runes, want %d", got, SampleLimit)
	}
	if !strings.HasPrefix(long, tree.Root.Sample) {
		t.Error("sample must be a prefix of the node span")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"truncated", "hello", 3, "hel"},
		{"zero limit", "hello", 0, ""},
		{"negative limit", "hello", -1, ""},
		{"multibyte runes", "héllo wörld", 4, "héll"},
		{"empty input", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateRunes(tt.in, tt.limit); got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
		})
	}
}

func TestConvertTree_NodeCap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("int v;\n")
	}
	loader := NewLoader(t.TempDir(), nil)

	tree, err := loader.ParseSource(context.Background(), []byte(b.String()), "many.c", "c")
	if err != nil {
		t.Fatalf("ParseSource() error: %v", err)
	}

	total := 0
	walkNodes(tree.Root, func(*Node) { total++ })
	if total > MaxTreeNodes {
		t.Errorf("conversion produced %d nodes, cap is %d", total, MaxTreeNodes)
	}
	if len(tree.Root.Children) != 50 {
		t.Errorf("root has %d children, want 50 declarations", len(tree.Root.Children))
	}
}
