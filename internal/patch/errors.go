package patch

import "fmt"

// ConfigurationError сигнализирует о некорректной конфигурации адресации
// (отсутствующий или неположительный размер патча, пустой префикс).
// Фатальна для вызова, повторов не предполагается.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("некорректная конфигурация адресации: %s", e.Reason)
}

// IsConfigurationError проверяет, является ли ошибка ошибкой конфигурации
func IsConfigurationError(err error) bool {
	_, ok := err.(*ConfigurationError)
	return ok
}
