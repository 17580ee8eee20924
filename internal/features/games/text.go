// Package games — text.go реализует три текстовые игры.
// Секрет — слово; ответ пользователя нормализуется (обрезка, верхний
// регистр, Ё→Е) перед сравнением, payload не мутируется.
package games

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

// defaultWords — запасной словарь для текстовых игр без своего списка слов.
var defaultWords = []string{"СЕРВЕР", "ТРАФИК", "ПОДПИСКА", "ПРОТОКОЛ", "МАРШРУТ", "ТУННЕЛЬ"}

type wordListStatic struct {
	Words []string `json:"words"`
}

func pickWord(static json.RawMessage, what string) (string, error) {
	var cfg wordListStatic
	if len(static) > 0 {
		if err := json.Unmarshal(static, &cfg); err != nil {
			return "", fmt.Errorf("конфиг %s: %w", what, err)
		}
	}
	words := cfg.Words
	if len(words) == 0 {
		words = defaultWords
	}
	return normalizeAnswer(words[rand.Intn(len(words))]), nil
}

// --- Шифр со сдвигом ---

type cipherPayload struct {
	Word    string `json:"word"`
	Shift   int    `json:"shift"`
	Encoded string `json:"encoded"`
}

type cipherGame struct{}

func (cipherGame) BuildPayload(static json.RawMessage) (json.RawMessage, error) {
	word, err := pickWord(static, "шифра")
	if err != nil {
		return nil, err
	}
	shift := 1 + rand.Intn(5)
	return json.Marshal(cipherPayload{
		Word:    word,
		Shift:   shift,
		Encoded: shiftWord(word, shift),
	})
}

func (cipherGame) Render(roundID int64, payload json.RawMessage, lang string) (*Prompt, error) {
	var p cipherPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("payload шифра: %w", err)
	}
	return &Prompt{
		Text: fmt.Sprintf(
			"🔎 ШИФР\n\nКаждая буква сдвинута на %d вперёд по алфавиту:\n\n`%s`\n\nНапиши расшифрованное слово одним сообщением.",
			p.Shift, p.Encoded),
		NeedsTextInput: true,
	}, nil
}

func (cipherGame) CheckAnswer(submitted string, payload json.RawMessage, lang string) (bool, string, error) {
	var p cipherPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, "", fmt.Errorf("payload шифра: %w", err)
	}
	if normalizeAnswer(submitted) == p.Word {
		return true, "", nil
	}
	return false, "Не расшифровалось.", nil
}

// Алфавиты для сдвига. Буквы вне алфавитов не сдвигаются.
const (
	alphabetRu = "АБВГДЕЖЗИЙКЛМНОПРСТУФХЦЧШЩЪЫЬЭЮЯ"
	alphabetEn = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// shiftWord сдвигает каждую букву слова на shift вперёд по её алфавиту.
func shiftWord(word string, shift int) string {
	var sb strings.Builder
	for _, r := range word {
		sb.WriteRune(shiftRune(r, shift))
	}
	return sb.String()
}

func shiftRune(r rune, shift int) rune {
	for _, alphabet := range []string{alphabetRu, alphabetEn} {
		runes := []rune(alphabet)
		for i, a := range runes {
			if a == r {
				return runes[(i+shift)%len(runes)]
			}
		}
	}
	return r
}

// --- Угадай по эмодзи ---

type emojiPair struct {
	Word   string `json:"word"`
	Emojis string `json:"emojis"`
}

type emojiGuessStatic struct {
	Pairs []emojiPair `json:"pairs"`
}

type emojiGuessGame struct{}

var defaultEmojiPairs = []emojiPair{
	{Word: "РАКЕТА", Emojis: "🚀✨"},
	{Word: "ЩИТ", Emojis: "🛡⚔️"},
	{Word: "МОЛНИЯ", Emojis: "⚡🌩"},
	{Word: "КЛЮЧ", Emojis: "🔑🚪"},
}

func (emojiGuessGame) BuildPayload(static json.RawMessage) (json.RawMessage, error) {
	var cfg emojiGuessStatic
	if len(static) > 0 {
		if err := json.Unmarshal(static, &cfg); err != nil {
			return nil, fmt.Errorf("конфиг эмодзи-игры: %w", err)
		}
	}
	pairs := cfg.Pairs
	if len(pairs) == 0 {
		pairs = defaultEmojiPairs
	}
	pair := pairs[rand.Intn(len(pairs))]
	pair.Word = normalizeAnswer(pair.Word)
	return json.Marshal(pair)
}

func (emojiGuessGame) Render(roundID int64, payload json.RawMessage, lang string) (*Prompt, error) {
	var p emojiPair
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("payload эмодзи-игры: %w", err)
	}
	return &Prompt{
		Text:           fmt.Sprintf("🧩 ЭМОДЗИ-ЗАГАДКА\n\n%s\n\nКакое слово зашифровано? Напиши ответ одним сообщением.", p.Emojis),
		NeedsTextInput: true,
	}, nil
}

func (emojiGuessGame) CheckAnswer(submitted string, payload json.RawMessage, lang string) (bool, string, error) {
	var p emojiPair
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, "", fmt.Errorf("payload эмодзи-игры: %w", err)
	}
	if normalizeAnswer(submitted) == p.Word {
		return true, "", nil
	}
	return false, "Не то слово.", nil
}

// --- Анаграмма ---

type anagramPayload struct {
	Word      string `json:"word"`
	Scrambled string `json:"scrambled"`
}

type anagramGame struct{}

func (anagramGame) BuildPayload(static json.RawMessage) (json.RawMessage, error) {
	word, err := pickWord(static, "анаграммы")
	if err != nil {
		return nil, err
	}
	return json.Marshal(anagramPayload{
		Word:      word,
		Scrambled: scramble(word),
	})
}

func (anagramGame) Render(roundID int64, payload json.RawMessage, lang string) (*Prompt, error) {
	var p anagramPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("payload анаграммы: %w", err)
	}
	return &Prompt{
		Text:           fmt.Sprintf("🔀 АНАГРАММА\n\nСобери слово из букв:\n\n`%s`\n\nНапиши ответ одним сообщением.", p.Scrambled),
		NeedsTextInput: true,
	}, nil
}

func (anagramGame) CheckAnswer(submitted string, payload json.RawMessage, lang string) (bool, string, error) {
	var p anagramPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, "", fmt.Errorf("payload анаграммы: %w", err)
	}
	if normalizeAnswer(submitted) == p.Word {
		return true, "", nil
	}
	return false, "Буквы те же, слово не то.", nil
}

// scramble перемешивает буквы слова. Для слов из одинаковых букв или
// совсем коротких может вернуть исходное слово — это допустимо.
func scramble(word string) string {
	runes := []rune(word)
	// До 10 заходов, чтобы перемешанное слово отличалось от исходного
	for attempt := 0; attempt < 10; attempt++ {
		rand.Shuffle(len(runes), func(i, j int) {
			runes[i], runes[j] = runes[j], runes[i]
		})
		if string(runes) != word {
			break
		}
	}
	return string(runes)
}
