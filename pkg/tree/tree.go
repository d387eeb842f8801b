// Package tree provides shared utilities for working with directory index trees.
package tree

import (
	"strings"

	"github.com/emberworks/codeconsole/pkg/models"
)

// CountNodes counts all nodes in a tree.
func CountNodes(root *models.FileNode) int {
	if root == nil {
		return 0
	}
	count := 1
	for _, child := range root.Children {
		count += CountNodes(child)
	}
	return count
}

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

// Flatten returns all nodes in a flat map keyed by path.
func Flatten(root *models.FileNode) map[string]*models.FileNode {
	result := make(map[string]*models.FileNode)
	if root == nil {
		return result
	}
	flattenRecursive(root, result)
	return result
}

func flattenRecursive(node *models.FileNode, result map[string]*models.FileNode) {
	result[node.Path] = node
	for _, child := range node.Children {
		flattenRecursive(child, result)
	}
}

// MatchesQuery reports whether a node's name contains the query,
// case-insensitively.
func MatchesQuery(node *models.FileNode, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(node.Name), strings.ToLower(query))
}
