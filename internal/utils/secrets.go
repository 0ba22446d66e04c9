package utils

import (
	"fmt"
	"os"
	"strings"
)

// ReadSecret читает секрет из файла в стандартном пути Docker Secrets.
// Если файла нет, пробует переменную окружения с именем секрета в верхнем
// регистре, чтобы сервер можно было запустить локально без Docker.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err == nil {
		secret := strings.TrimSpace(string(secretBytes))
		if secret == "" {
			return "", fmt.Errorf("secret file %s is empty", filePath)
		}
		return secret, nil
	}

	if envVal := strings.TrimSpace(os.Getenv(strings.ToUpper(secretName))); envVal != "" {
		return envVal, nil
	}
	return "", fmt.Errorf("failed to read secret %s: no file %s and no env fallback", secretName, filePath)
}
