// Package index builds the navigable tree of the sandboxed source
// directory.
package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/emberworks/codeconsole/internal/metrics"
	"github.com/emberworks/codeconsole/pkg/models"
	"github.com/emberworks/codeconsole/pkg/tree"
)

// ErrIndexUnavailable is returned when the sandbox root cannot be read.
var ErrIndexUnavailable = errors.New("index: sandbox root unavailable")

// skipDirs are directory names never descended into.
var skipDirs = map[string]struct{}{
	"node_modules": {},
}

// Index scans a sandbox root and produces FileNode trees.
type Index struct {
	root string
}

// New returns an Index over the given sandbox root directory.
func New(root string) *Index {
	return &Index{root: root}
}

// Root returns the sandbox root path the index scans.
func (ix *Index) Root() string {
	return ix.root
}

// BuildTree walks the sandbox and returns its tree. Dotfiles and
// node_modules are skipped. Children are sorted directories first,
// then by name.
func (ix *Index) BuildTree() (*models.FileNode, error) {
	start := time.Now()

	info, err := os.Stat(ix.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrIndexUnavailable, ix.root)
	}

	root := &models.FileNode{
		Name:    filepath.Base(ix.root),
		Path:    "",
		Kind:    models.KindDirectory,
		ModTime: info.ModTime(),
	}
	if err := ix.scan(ix.root, "", root); err != nil {
		return nil, err
	}

	metrics.RecordIndexScan(time.Since(start))
	metrics.SetIndexTreeSize(int64(tree.CountNodes(root)))
	return root, nil
}

func (ix *Index) scan(dir, rel string, parent *models.FileNode) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if _, skip := skipDirs[name]; skip && entry.IsDir() {
			continue
		}

		node := &models.FileNode{
			Name: name,
			Path: tree.BuildChildPath(rel, name),
		}
		if info, err := entry.Info(); err == nil {
			node.ModTime = info.ModTime()
			if !entry.IsDir() {
				node.Size = info.Size()
			}
		}

		if entry.IsDir() {
			node.Kind = models.KindDirectory
			if err := ix.scan(filepath.Join(dir, name), node.Path, node); err != nil {
				return err
			}
		} else {
			node.Kind = KindForName(name)
		}
		parent.Children = append(parent.Children, node)
	}

	sortChildren(parent.Children)
	return nil
}

// sortChildren orders directories before files, each group by name.
func sortChildren(nodes []*models.FileNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		di, dj := nodes[i].IsDir(), nodes[j].IsDir()
		if di != dj {
			return di
		}
		return nodes[i].Name < nodes[j].Name
	})
}

// KindForName maps a file name to its node kind by extension.
func KindForName(name string) models.NodeKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tsx":
		return models.KindComponent
	case ".ts":
		return models.KindModule
	case ".css":
		return models.KindStylesheet
	}
	return models.KindFile
}

// Filter returns a copy of the tree keeping only nodes whose name
// matches the query and the directories leading to them. Directories
// are filtered recursively; a directory whose own name matches stays
// even when none of its children do, but it still carries only the
// matching children.
func Filter(root *models.FileNode, query string) *models.FileNode {
	if root == nil || query == "" {
		return root
	}
	return filterNode(root, query)
}

func filterNode(node *models.FileNode, query string) *models.FileNode {
	if !node.IsDir() {
		if tree.MatchesQuery(node, query) {
			clone := *node
			return &clone
		}
		return nil
	}

	var kept []*models.FileNode
	for _, child := range node.Children {
		if match := filterNode(child, query); match != nil {
			kept = append(kept, match)
		}
	}
	if kept == nil && node.Path != "" && !tree.MatchesQuery(node, query) {
		return nil
	}

	clone := *node
	clone.Children = kept
	return &clone
}
