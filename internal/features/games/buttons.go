// Package games — buttons.go реализует четыре кнопочные игры.
// Общий принцип: payload хранит список вариантов и секретный индекс,
// токен кнопки — строковый индекс варианта.
package games

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
)

// --- Квест-сетка ---

// questStatic — статичный конфиг шаблона квеста.
type questStatic struct {
	Cells int    `json:"cells"`      // размер сетки (по умолчанию 9)
	Cell  string `json:"cell_emoji"` // эмодзи закрытой ячейки
}

// questPayload — payload раунда: секретная ячейка выбрана один раз при создании.
type questPayload struct {
	Cells  int    `json:"cells"`
	Cell   string `json:"cell_emoji"`
	Secret int    `json:"secret"`
}

type questGame struct{}

func (questGame) BuildPayload(static json.RawMessage) (json.RawMessage, error) {
	cfg := questStatic{Cells: 9, Cell: "📦"}
	if len(static) > 0 {
		if err := json.Unmarshal(static, &cfg); err != nil {
			return nil, fmt.Errorf("конфиг квеста: %w", err)
		}
	}
	if cfg.Cells < 2 {
		cfg.Cells = 9
	}
	if cfg.Cell == "" {
		cfg.Cell = "📦"
	}
	return json.Marshal(questPayload{
		Cells:  cfg.Cells,
		Cell:   cfg.Cell,
		Secret: rand.Intn(cfg.Cells),
	})
}

func (questGame) Render(roundID int64, payload json.RawMessage, lang string) (*Prompt, error) {
	var p questPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("payload квеста: %w", err)
	}
	opts := make([]Option, p.Cells)
	for i := range opts {
		opts[i] = Option{Token: strconv.Itoa(i), Label: p.Cell}
	}
	return &Prompt{
		Text:    fmt.Sprintf("🗝 КВЕСТ\n\nВ одной из %d ячеек спрятан приз. Выбирай!", p.Cells),
		Options: opts,
	}, nil
}

func (questGame) CheckAnswer(submitted string, payload json.RawMessage, lang string) (bool, string, error) {
	var p questPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, "", fmt.Errorf("payload квеста: %w", err)
	}
	if normalizeAnswer(submitted) == strconv.Itoa(p.Secret) {
		return true, "", nil
	}
	return false, "Пусто! Приз был в другой ячейке.", nil
}

// --- Взлом замка ---

type lockHackStatic struct {
	CodeLength int `json:"code_length"` // длина кода (по умолчанию 4)
	Options    int `json:"options"`     // число кандидатов (по умолчанию 6)
}

type lockHackPayload struct {
	Codes  []string `json:"codes"`
	Secret int      `json:"secret"`
}

type lockHackGame struct{}

func (lockHackGame) BuildPayload(static json.RawMessage) (json.RawMessage, error) {
	cfg := lockHackStatic{CodeLength: 4, Options: 6}
	if len(static) > 0 {
		if err := json.Unmarshal(static, &cfg); err != nil {
			return nil, fmt.Errorf("конфиг взлома: %w", err)
		}
	}
	if cfg.CodeLength < 2 {
		cfg.CodeLength = 4
	}
	if cfg.Options < 2 {
		cfg.Options = 6
	}

	// Генерируем уникальные коды-кандидаты
	codes := make([]string, 0, cfg.Options)
	seen := make(map[string]bool, cfg.Options)
	for len(codes) < cfg.Options {
		code := randomDigits(cfg.CodeLength)
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}

	return json.Marshal(lockHackPayload{
		Codes:  codes,
		Secret: rand.Intn(len(codes)),
	})
}

func (lockHackGame) Render(roundID int64, payload json.RawMessage, lang string) (*Prompt, error) {
	var p lockHackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("payload взлома: %w", err)
	}
	opts := make([]Option, len(p.Codes))
	for i, code := range p.Codes {
		opts[i] = Option{Token: strconv.Itoa(i), Label: "🔑 " + code}
	}
	return &Prompt{
		Text:    "🔐 ВЗЛОМ ЗАМКА\n\nОдин из кодов открывает сейф с призом. Какой?",
		Options: opts,
	}, nil
}

func (lockHackGame) CheckAnswer(submitted string, payload json.RawMessage, lang string) (bool, string, error) {
	var p lockHackPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, "", fmt.Errorf("payload взлома: %w", err)
	}
	if normalizeAnswer(submitted) == strconv.Itoa(p.Secret) {
		return true, "", nil
	}
	return false, "Код не подошёл, замок не поддался.", nil
}

// --- Серверная лотерея ---

type serverLotteryStatic struct {
	Servers []string `json:"servers"`
}

type serverLotteryPayload struct {
	Servers []string `json:"servers"`
	Secret  int      `json:"secret"`
}

type serverLotteryGame struct{}

// defaultServers — запасной список, если шаблон не задал свой.
var defaultServers = []string{"🇳🇱 NL-1", "🇩🇪 DE-1", "🇫🇮 FI-1", "🇸🇪 SE-1", "🇫🇷 FR-1", "🇹🇷 TR-1"}

func (serverLotteryGame) BuildPayload(static json.RawMessage) (json.RawMessage, error) {
	var cfg serverLotteryStatic
	if len(static) > 0 {
		if err := json.Unmarshal(static, &cfg); err != nil {
			return nil, fmt.Errorf("конфиг лотереи: %w", err)
		}
	}
	servers := cfg.Servers
	if len(servers) < 2 {
		servers = defaultServers
	}
	return json.Marshal(serverLotteryPayload{
		Servers: servers,
		Secret:  rand.Intn(len(servers)),
	})
}

func (serverLotteryGame) Render(roundID int64, payload json.RawMessage, lang string) (*Prompt, error) {
	var p serverLotteryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("payload лотереи: %w", err)
	}
	opts := make([]Option, len(p.Servers))
	for i, srv := range p.Servers {
		opts[i] = Option{Token: strconv.Itoa(i), Label: srv}
	}
	return &Prompt{
		Text:    "🎰 СЕРВЕРНАЯ ЛОТЕРЕЯ\n\nОдин из серверов сегодня счастливый. Поставь на свой!",
		Options: opts,
	}, nil
}

func (serverLotteryGame) CheckAnswer(submitted string, payload json.RawMessage, lang string) (bool, string, error) {
	var p serverLotteryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, "", fmt.Errorf("payload лотереи: %w", err)
	}
	if normalizeAnswer(submitted) == strconv.Itoa(p.Secret) {
		return true, "", nil
	}
	return false, "Не тот сервер — удача сегодня в другом дата-центре.", nil
}

// --- Блиц-реакция ---

type blitzStatic struct {
	Target string   `json:"target"`
	Decoys []string `json:"decoys"`
	Cells  int      `json:"cells"`
}

type blitzPayload struct {
	Target string   `json:"target"`
	Emojis []string `json:"emojis"`
	Secret int      `json:"secret"`
}

type blitzGame struct{}

var defaultBlitzDecoys = []string{"🔥", "💫", "✨", "🌟", "💥", "🌀", "☄️"}

func (blitzGame) BuildPayload(static json.RawMessage) (json.RawMessage, error) {
	cfg := blitzStatic{Target: "⚡", Cells: 8}
	if len(static) > 0 {
		if err := json.Unmarshal(static, &cfg); err != nil {
			return nil, fmt.Errorf("конфиг блица: %w", err)
		}
	}
	if cfg.Target == "" {
		cfg.Target = "⚡"
	}
	if cfg.Cells < 2 {
		cfg.Cells = 8
	}
	decoys := cfg.Decoys
	if len(decoys) == 0 {
		decoys = defaultBlitzDecoys
	}

	secret := rand.Intn(cfg.Cells)
	emojis := make([]string, cfg.Cells)
	for i := range emojis {
		if i == secret {
			emojis[i] = cfg.Target
			continue
		}
		emojis[i] = decoys[rand.Intn(len(decoys))]
	}

	return json.Marshal(blitzPayload{Target: cfg.Target, Emojis: emojis, Secret: secret})
}

func (blitzGame) Render(roundID int64, payload json.RawMessage, lang string) (*Prompt, error) {
	var p blitzPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("payload блица: %w", err)
	}
	opts := make([]Option, len(p.Emojis))
	for i, e := range p.Emojis {
		opts[i] = Option{Token: strconv.Itoa(i), Label: e}
	}
	return &Prompt{
		Text:    fmt.Sprintf("⚡ БЛИЦ\n\nЖми на %s быстрее всех!", p.Target),
		Options: opts,
	}, nil
}

func (blitzGame) CheckAnswer(submitted string, payload json.RawMessage, lang string) (bool, string, error) {
	var p blitzPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, "", fmt.Errorf("payload блица: %w", err)
	}
	if normalizeAnswer(submitted) == strconv.Itoa(p.Secret) {
		return true, "", nil
	}
	return false, "Мимо! Реакция подвела.", nil
}

// randomDigits генерирует строку из n случайных цифр.
func randomDigits(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + rand.Intn(10))
	}
	return string(b)
}
