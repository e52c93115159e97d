package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare_NilOldReportsAllAdded(t *testing.T) {
	updated := BuildTree([]FileInput{
		{Path: "a.txt", Content: "a"},
		{Path: "src/b.ts", Content: "b"},
	}, fixedClock{})

	result := Compare(nil, updated)

	assert.Equal(t, 2, result.Summary.Added)
	assert.Equal(t, 0, result.Summary.Modified)
	assert.Equal(t, 0, result.Summary.Deleted)
	assert.ElementsMatch(t, []string{"a.txt", "src/b.ts"}, result.FilesToProcess)
	assert.Empty(t, result.DeletedFiles)
}

func TestCompare_IdenticalTreesNoChanges(t *testing.T) {
	files := []FileInput{{Path: "a.txt", Content: "a"}}
	old := BuildTree(files, fixedClock{})
	updated := BuildTree(files, fixedClock{})

	result := Compare(old, updated)

	assert.Zero(t, result.Summary.Total)
	assert.Empty(t, result.Changes)
}

func TestCompare_FileAdded(t *testing.T) {
	old := BuildTree([]FileInput{{Path: "a.txt", Content: "a"}}, fixedClock{})
	updated := BuildTree([]FileInput{
		{Path: "a.txt", Content: "a"},
		{Path: "b.txt", Content: "b"},
	}, fixedClock{})

	result := Compare(old, updated)

	require.Len(t, result.Changes, 1)
	assert.Equal(t, "b.txt", result.Changes[0].Path)
	assert.Equal(t, Added, result.Changes[0].ChangeType)
	assert.Equal(t, []string{"b.txt"}, result.FilesToProcess)
}

func TestCompare_FileModified(t *testing.T) {
	old := BuildTree([]FileInput{{Path: "a.txt", Content: "a"}}, fixedClock{})
	updated := BuildTree([]FileInput{{Path: "a.txt", Content: "a2"}}, fixedClock{})

	result := Compare(old, updated)

	require.Len(t, result.Changes, 1)
	change := result.Changes[0]
	assert.Equal(t, "a.txt", change.Path)
	assert.Equal(t, Modified, change.ChangeType)
	assert.NotEmpty(t, change.OldHash)
	assert.NotEmpty(t, change.NewHash)
	assert.NotEqual(t, change.OldHash, change.NewHash)
}

func TestCompare_FileDeleted(t *testing.T) {
	old := BuildTree([]FileInput{
		{Path: "a.txt", Content: "a"},
		{Path: "b.txt", Content: "b"},
	}, fixedClock{})
	updated := BuildTree([]FileInput{{Path: "a.txt", Content: "a"}}, fixedClock{})

	result := Compare(old, updated)

	require.Len(t, result.Changes, 1)
	assert.Equal(t, "b.txt", result.Changes[0].Path)
	assert.Equal(t, Deleted, result.Changes[0].ChangeType)
	assert.Equal(t, []string{"b.txt"}, result.DeletedFiles)
}

func TestCompare_RenameIsDeleteThenAdd(t *testing.T) {
	old := BuildTree([]FileInput{{Path: "old.txt", Content: "same"}}, fixedClock{})
	updated := BuildTree([]FileInput{{Path: "new.txt", Content: "same"}}, fixedClock{})

	result := Compare(old, updated)

	assert.Equal(t, 1, result.Summary.Added)
	assert.Equal(t, 1, result.Summary.Deleted)
	assert.Equal(t, 0, result.Summary.Modified)
}

func TestCompare_TypeMismatchDeletesAndReAddsSubtree(t *testing.T) {
	old := BuildTree([]FileInput{{Path: "a/b.txt", Content: "nested"}}, fixedClock{})
	updated := BuildTree([]FileInput{{Path: "a", Content: "flat"}}, fixedClock{})

	result := Compare(old, updated)

	var added, deleted []string
	for _, c := range result.Changes {
		switch c.ChangeType {
		case Added:
			added = append(added, c.Path)
		case Deleted:
			deleted = append(deleted, c.Path)
		}
	}

	assert.Equal(t, []string{"a"}, added)
	assert.Equal(t, []string{"a/b.txt"}, deleted)
}

func TestCompare_UnchangedSubtreeSkipped(t *testing.T) {
	old := BuildTree([]FileInput{
		{Path: "src/a.ts", Content: "a"},
		{Path: "src/b.ts", Content: "b"},
		{Path: "docs/readme.md", Content: "old docs"},
	}, fixedClock{})
	updated := BuildTree([]FileInput{
		{Path: "src/a.ts", Content: "a"},
		{Path: "src/b.ts", Content: "b"},
		{Path: "docs/readme.md", Content: "new docs"},
	}, fixedClock{})

	result := Compare(old, updated)

	require.Len(t, result.Changes, 1)
	assert.Equal(t, "docs/readme.md", result.Changes[0].Path)
	assert.Equal(t, Modified, result.Changes[0].ChangeType)
}
