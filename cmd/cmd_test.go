package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExitCommand(t *testing.T) {
	t.Parallel()

	assert.True(t, isExitCommand("exit"))
	assert.True(t, isExitCommand("quit"))
	assert.True(t, isExitCommand("q"))
	assert.True(t, isExitCommand("EXIT"))
	assert.False(t, isExitCommand("exit now"))
	assert.False(t, isExitCommand("hello"))
}

func TestSubcommandsRegistered(t *testing.T) {
	t.Parallel()

	want := []string{"chat", "serve", "ingest", "sessions", "version"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "command %q not registered", name)
	}
}

func TestMarkdownRendererDegradesGracefully(t *testing.T) {
	t.Parallel()

	var m *markdownRenderer
	assert.Equal(t, "**bold**", m.Render("**bold**"))
}
