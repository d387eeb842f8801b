package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emberworks/codeconsole/pkg/models"
	"github.com/emberworks/codeconsole/pkg/tree"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setupSandbox(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "App.tsx"), "export default function App() {}")
	writeFile(t, filepath.Join(root, "index.css"), "body {}")
	writeFile(t, filepath.Join(root, "utils.ts"), "export const x = 1")
	writeFile(t, filepath.Join(root, "README.md"), "readme")
	writeFile(t, filepath.Join(root, ".env"), "SECRET=1")
	writeFile(t, filepath.Join(root, "pages", "Home.tsx"), "export default function Home() {}")
	writeFile(t, filepath.Join(root, "node_modules", "dep", "index.js"), "module.exports = {}")
	return root
}

func TestBuildTree(t *testing.T) {
	root := setupSandbox(t)
	node, err := New(root).BuildTree()
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	flat := tree.Flatten(node)
	for _, path := range []string{"App.tsx", "index.css", "utils.ts", "README.md", "pages", "pages/Home.tsx"} {
		if _, ok := flat[path]; !ok {
			t.Errorf("tree missing %q", path)
		}
	}
	for _, path := range []string{".env", "node_modules", "node_modules/dep/index.js"} {
		if _, ok := flat[path]; ok {
			t.Errorf("tree should not contain %q", path)
		}
	}

	// Directories sort before files.
	if node.Children[0].Name != "pages" {
		t.Errorf("first child = %q, want pages", node.Children[0].Name)
	}
}

func TestBuildTreeKinds(t *testing.T) {
	root := setupSandbox(t)
	node, err := New(root).BuildTree()
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	flat := tree.Flatten(node)

	tests := []struct {
		path string
		kind models.NodeKind
	}{
		{"App.tsx", models.KindComponent},
		{"utils.ts", models.KindModule},
		{"index.css", models.KindStylesheet},
		{"README.md", models.KindFile},
		{"pages", models.KindDirectory},
	}
	for _, tt := range tests {
		n, ok := flat[tt.path]
		if !ok {
			t.Errorf("missing %q", tt.path)
			continue
		}
		if n.Kind != tt.kind {
			t.Errorf("%q kind = %q, want %q", tt.path, n.Kind, tt.kind)
		}
	}
}

func TestBuildTreeMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing")).BuildTree()
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestFilter(t *testing.T) {
	root := setupSandbox(t)
	node, err := New(root).BuildTree()
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	filtered := Filter(node, "home")
	flat := tree.Flatten(filtered)
	if _, ok := flat["pages/Home.tsx"]; !ok {
		t.Error("filter dropped matching file")
	}
	if _, ok := flat["pages"]; !ok {
		t.Error("filter dropped parent directory of a match")
	}
	if _, ok := flat["App.tsx"]; ok {
		t.Error("filter kept non-matching file")
	}

	// Empty query returns the tree unchanged.
	if got := Filter(node, ""); got != node {
		t.Error("empty query should return the original tree")
	}

	// No matches keeps only the root.
	empty := Filter(node, "zzz-no-such-file")
	if len(empty.Children) != 0 {
		t.Errorf("no-match filter kept %d children", len(empty.Children))
	}
}

func TestFilterMatchingDirectoryChildrenPruned(t *testing.T) {
	root := setupSandbox(t)
	node, err := New(root).BuildTree()
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	// "pages" matches the directory name but none of its files.
	filtered := Filter(node, "pages")
	flat := tree.Flatten(filtered)
	dir, ok := flat["pages"]
	if !ok {
		t.Fatal("filter dropped matching directory")
	}
	if len(dir.Children) != 0 {
		t.Errorf("matching directory kept %d non-matching children", len(dir.Children))
	}
	if _, ok := flat["pages/Home.tsx"]; ok {
		t.Error("filter kept non-matching file under matching directory")
	}
}

func TestKindForName(t *testing.T) {
	tests := []struct {
		name string
		want models.NodeKind
	}{
		{"App.tsx", models.KindComponent},
		{"store.TS", models.KindModule},
		{"theme.css", models.KindStylesheet},
		{"notes.txt", models.KindFile},
		{"Makefile", models.KindFile},
	}
	for _, tt := range tests {
		if got := KindForName(tt.name); got != tt.want {
			t.Errorf("KindForName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
