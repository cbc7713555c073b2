package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "PATH", "SIZE")
	table.AddRow("a.java", "12")
	table.AddRow("longer/b.java", "3", "ignored")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "PATH           SIZE", lines[0])
	assert.Equal(t, "a.java         12", lines[2])
	assert.Equal(t, "longer/b.java  3", lines[3])
	assert.Equal(t, 2, table.Len())
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	assert.Empty(t, buf.String())
}

func TestKeyValueTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewKeyValueTable(&buf, true)
	table.AddRow("cache hits", 3)
	table.AddRow("misses", 1)
	table.Render()

	assert.Equal(t, "cache hits: 3\nmisses:     1\n", buf.String())
}
