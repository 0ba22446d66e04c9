package prompt

import "strings"

// Ellipsis - маркер жесткого усечения промпта.
const Ellipsis = "..."

// minCutPoint - насколько далеко назад от границы разрешено откатываться
// в поисках конца предложения. Короче - невнятный обрубок промпта.
const minCutPoint = 100

// TruncatePrompt усекает промпт до maxLength, стараясь не резать посреди
// слова: откатывается к последней точке или запятой перед границей. Если
// ближайшая граница предложения слишком далеко (< minCutPoint), режет жестко
// и добавляет многоточие. Идемпотентна: повторное усечение результата с тем
// же лимитом ничего не меняет.
func TruncatePrompt(p string, maxLength int) string {
	if len(p) <= maxLength {
		return p
	}

	truncated := p[:maxLength]
	lastPeriod := strings.LastIndex(truncated, ".")
	lastComma := strings.LastIndex(truncated, ",")

	cutPoint := lastPeriod
	if lastComma > cutPoint {
		cutPoint = lastComma
	}

	if cutPoint > minCutPoint {
		return truncated[:cutPoint+1]
	}
	return truncated + Ellipsis
}
