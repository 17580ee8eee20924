// Package games реализует мини-игры конкурсов: генерацию секрета раунда,
// описание интерфейса (кнопки или текстовый ввод) и проверку ответа.
// registry.go — закрытый реестр стратегий: неизвестный слаг игры
// отбрасывается на границе, а не протаскивается вглубь обработчиков.
package games

import (
	"encoding/json"
	"strings"

	"nebulavpn.ru/telegram-bot/internal/common"
)

// Kind — тип игры. Ровно семь поддерживаемых значений.
type Kind string

const (
	// Кнопочные игры: секрет — индекс среди перечисленных вариантов
	KindQuest         Kind = "quest"          // сетка ячеек, в одной спрятан приз
	KindLockHack      Kind = "lock_hack"      // подбор кода замка среди кандидатов
	KindServerLottery Kind = "server_lottery" // лотерея "счастливый сервер"
	KindBlitz         Kind = "blitz"          // найди названный эмодзи среди обманок

	// Текстовые игры: секрет — строка, которую пользователь вводит сам
	KindCipher     Kind = "cipher"      // слово, зашифрованное сдвигом
	KindEmojiGuess Kind = "emoji_guess" // угадай слово по эмодзи
	KindAnagram    Kind = "anagram"     // собери слово из перемешанных букв
)

// Option — один вариант ответа кнопочной игры.
// Token уходит в callback-данные кнопки, Label — подпись на кнопке.
type Option struct {
	Token string
	Label string
}

// Prompt описывает, как показать раунд в чате.
// Для кнопочных игр заполнен Options; для текстовых NeedsTextInput=true
// и следующий свободный текст пользователя считается ответом.
type Prompt struct {
	Text           string
	Options        []Option
	NeedsTextInput bool
}

// Strategy — поведение одной игры.
// Реализации чистые: единственный побочный эффект BuildPayload — источник
// случайности, CheckAnswer детерминирован и не мутирует payload.
type Strategy interface {
	// BuildPayload выводит случайный payload раунда из статичного конфига
	// шаблона. Один вызов — один свежий секрет.
	BuildPayload(static json.RawMessage) (json.RawMessage, error)

	// Render описывает подачу раунда пользователю на языке lang.
	Render(roundID int64, payload json.RawMessage, lang string) (*Prompt, error)

	// CheckAnswer сверяет ответ с секретом payload.
	// Возвращает (верно, сообщение об отказе для неверного ответа, ошибка).
	CheckAnswer(submitted string, payload json.RawMessage, lang string) (bool, string, error)
}

// registry — закрытое множество стратегий. Дополняется только здесь.
var registry = map[Kind]Strategy{
	KindQuest:         questGame{},
	KindLockHack:      lockHackGame{},
	KindServerLottery: serverLotteryGame{},
	KindBlitz:         blitzGame{},
	KindCipher:        cipherGame{},
	KindEmojiGuess:    emojiGuessGame{},
	KindAnagram:       anagramGame{},
}

// textInputKinds — игры, ожидающие свободный текст вместо нажатия кнопки.
var textInputKinds = map[Kind]bool{
	KindCipher:     true,
	KindEmojiGuess: true,
	KindAnagram:    true,
}

// Resolve возвращает стратегию по слагу игры из шаблона.
func Resolve(kind string) (Strategy, error) {
	s, ok := registry[Kind(kind)]
	if !ok {
		return nil, common.ErrUnsupportedGame
	}
	return s, nil
}

// IsTextInput сообщает, ждёт ли игра текстовый ответ.
// Для неизвестного слага возвращает false — вызывающий в любом случае
// споткнётся о Resolve.
func IsTextInput(kind string) bool {
	return textInputKinds[Kind(kind)]
}

// Kinds возвращает список поддерживаемых слагов (для админ-подсказок).
func Kinds() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, string(k))
	}
	return out
}

// normalizeAnswer приводит текстовый ответ к канонической форме:
// обрезка пробелов, верхний регистр, Ё → Е.
func normalizeAnswer(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "Ё", "Е")
}
