package games

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nebulavpn.ru/telegram-bot/internal/common"
)

// secretOf достаёт правильный ответ из payload раунда:
// у кнопочных игр это индекс секрета, у текстовых — слово.
func secretOf(t *testing.T, payload json.RawMessage) string {
	t.Helper()
	var p struct {
		Secret *int   `json:"secret"`
		Word   string `json:"word"`
	}
	require.NoError(t, json.Unmarshal(payload, &p))
	if p.Secret != nil {
		return strconv.Itoa(*p.Secret)
	}
	require.NotEmpty(t, p.Word)
	return p.Word
}

func TestAllGamesRoundTrip(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind, func(t *testing.T) {
			strategy, err := Resolve(kind)
			require.NoError(t, err)

			payload, err := strategy.BuildPayload(nil)
			require.NoError(t, err)
			require.NotEmpty(t, payload)

			correct := secretOf(t, payload)

			ok, _, err := strategy.CheckAnswer(correct, payload, "ru")
			require.NoError(t, err)
			assert.True(t, ok, "правильный ответ должен приниматься")

			ok, msg, err := strategy.CheckAnswer("заведомо неверный ответ", payload, "ru")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.NotEmpty(t, msg, "отказ должен сопровождаться сообщением")
		})
	}
}

func TestRenderPrompts(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind, func(t *testing.T) {
			strategy, err := Resolve(kind)
			require.NoError(t, err)

			payload, err := strategy.BuildPayload(nil)
			require.NoError(t, err)

			prompt, err := strategy.Render(42, payload, "ru")
			require.NoError(t, err)
			require.NotNil(t, prompt)
			assert.NotEmpty(t, prompt.Text)

			assert.Equal(t, IsTextInput(kind), prompt.NeedsTextInput)
			if prompt.NeedsTextInput {
				assert.Empty(t, prompt.Options)
			} else {
				require.NotEmpty(t, prompt.Options, "кнопочная игра обязана отдавать варианты")
				// Токен секрета присутствует среди вариантов
				correct := secretOf(t, payload)
				found := false
				for _, opt := range prompt.Options {
					assert.NotEmpty(t, opt.Label)
					if opt.Token == correct {
						found = true
					}
				}
				assert.True(t, found, "среди вариантов должен быть секретный")
			}
		})
	}
}

func TestRenderNeverLeaksSecret(t *testing.T) {
	// У текстовых игр задание не должно содержать само слово
	for _, kind := range []Kind{KindCipher, KindAnagram} {
		strategy, err := Resolve(string(kind))
		require.NoError(t, err)

		static, _ := json.Marshal(map[string][]string{"words": {"МАРШРУТИЗАТОР"}})
		payload, err := strategy.BuildPayload(static)
		require.NoError(t, err)

		prompt, err := strategy.Render(1, payload, "ru")
		require.NoError(t, err)
		assert.NotContains(t, prompt.Text, "МАРШРУТИЗАТОР", "kind=%s", kind)
	}
}

func TestAnswerNormalization(t *testing.T) {
	strategy, err := Resolve(string(KindAnagram))
	require.NoError(t, err)

	static, _ := json.Marshal(map[string][]string{"words": {"ёжик"}})
	payload, err := strategy.BuildPayload(static)
	require.NoError(t, err)

	// Регистр, пробелы и Ё/Е не должны влиять
	for _, answer := range []string{"ёжик", "ЁЖИК", "  ежик  ", "Ежик"} {
		ok, _, err := strategy.CheckAnswer(answer, payload, "ru")
		require.NoError(t, err)
		assert.True(t, ok, "ответ %q должен приниматься", answer)
	}
}

func TestCipherEncodesWord(t *testing.T) {
	strategy, err := Resolve(string(KindCipher))
	require.NoError(t, err)

	static, _ := json.Marshal(map[string][]string{"words": {"СЕРВЕР"}})
	payload, err := strategy.BuildPayload(static)
	require.NoError(t, err)

	var p struct {
		Word    string `json:"word"`
		Shift   int    `json:"shift"`
		Encoded string `json:"encoded"`
	}
	require.NoError(t, json.Unmarshal(payload, &p))
	assert.Equal(t, "СЕРВЕР", p.Word)
	assert.Greater(t, p.Shift, 0)
	assert.NotEqual(t, p.Word, p.Encoded, "шифровка не должна совпадать со словом")
}

func TestResolveUnknownGame(t *testing.T) {
	_, err := Resolve("poker")
	assert.ErrorIs(t, err, common.ErrUnsupportedGame)
}

func TestStaticConfigOverridesDefaults(t *testing.T) {
	strategy, err := Resolve(string(KindQuest))
	require.NoError(t, err)

	static, _ := json.Marshal(map[string]interface{}{"cells": 4, "cell_emoji": "🎁"})
	payload, err := strategy.BuildPayload(static)
	require.NoError(t, err)

	var p struct {
		Cells  int `json:"cells"`
		Secret int `json:"secret"`
	}
	require.NoError(t, json.Unmarshal(payload, &p))
	assert.Equal(t, 4, p.Cells)
	assert.GreaterOrEqual(t, p.Secret, 0)
	assert.Less(t, p.Secret, 4)
}
