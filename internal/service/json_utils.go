package service

import (
	"strings"
)

// FixJSON исправляет потенциально некорректный JSON из ответа модели.
// В частности, решает проблему незакрытых скобок в конце: модели нередко
// обрывают ответ на лимите токенов посреди массива страниц.
func FixJSON(jsonStr string) string {
	if jsonStr == "" {
		return jsonStr
	}

	// Подсчитываем скобки вне строковых литералов
	counts := map[rune]int{
		'{': 0,
		'}': 0,
		'[': 0,
		']': 0,
	}

	inString := false
	escaped := false

	for _, char := range jsonStr {
		if char == '"' && !escaped {
			inString = !inString
		}

		if !inString {
			if count, exists := counts[char]; exists {
				counts[char] = count + 1
			}
		}

		if char == '\\' && !escaped {
			escaped = true
		} else {
			escaped = false
		}
	}

	fixedJSON := jsonStr
	// Оборванную строку закрываем перед скобками
	if inString {
		fixedJSON += `"`
	}

	if imbalance := counts['['] - counts[']']; imbalance > 0 {
		fixedJSON += strings.Repeat("]", imbalance)
	}
	if imbalance := counts['{'] - counts['}']; imbalance > 0 {
		fixedJSON += strings.Repeat("}", imbalance)
	}

	return fixedJSON
}
