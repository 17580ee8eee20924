package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	cmd, args, ok := p.ParseCommand("!баланс")
	require.True(t, ok)
	assert.Equal(t, "баланс", cmd)
	assert.Empty(t, args)

	cmd, args, ok = p.ParseCommand(".Оплата 123 5000 30")
	require.True(t, ok)
	assert.Equal(t, "оплата", cmd)
	assert.Equal(t, []string{"123", "5000", "30"}, args)

	cmd, _, ok = p.ParseCommand("/help")
	require.True(t, ok)
	assert.Equal(t, "help", cmd)

	// пробелы вокруг и между словами не мешают
	cmd, args, ok = p.ParseCommand("  ! раунд   daily-quest  ")
	require.True(t, ok)
	assert.Equal(t, "раунд", cmd)
	assert.Equal(t, []string{"daily-quest"}, args)
}

func TestParseCommandRejectsPlainText(t *testing.T) {
	p := NewCommandParser()

	for _, text := range []string{"", "привет", "баланс", "!", "  .  "} {
		_, _, ok := p.ParseCommand(text)
		assert.False(t, ok, "text=%q", text)
	}
}
