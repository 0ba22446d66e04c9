package models

// Settings - настройки генерации на процесс. Ключи приходят из конфигурации
// при старте, CreativityLevel может быть переопределен сохраненным значением.
// Пайплайн получает снимок настроек на запуск, а не ссылку на общий объект,
// чтобы сохранение настроек между запусками не влияло на идущую генерацию.
type Settings struct {
	Model           string `json:"model"`
	CreativityLevel int    `json:"creativity_level"`
	APIKey          string `json:"-"`
	ImageAPIKey     string `json:"-"`
}

// Temperature переводит уровень креативности (0..100) в температуру модели (0..1).
func (s Settings) Temperature() float64 {
	level := s.CreativityLevel
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	return float64(level) / 100.0
}
