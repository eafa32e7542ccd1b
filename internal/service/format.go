package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maptrack/maptrack/internal/extractor"
	"github.com/maptrack/maptrack/internal/tracking"
)

// UserMessage maps a tracking failure onto the text shown to the subscriber.
// Each error kind gets a distinct message so the user can tell a site outage
// from a bad request.
func UserMessage(err error) string {
	var fault *extractor.ContractFault
	if errors.As(err, &fault) {
		switch fault.Kind {
		case extractor.FaultSecurityCheck:
			return "Сайт отклонил запрос (проверка безопасности). Попробуйте позже."
		case extractor.FaultNotFound:
			return "Договор не найден."
		case extractor.FaultServer:
			return "Ошибка на стороне сервиса отслеживания. Попробуйте позже."
		default:
			return "Не удалось разобрать ответ сервиса отслеживания."
		}
	}
	switch {
	case errors.Is(err, extractor.ErrDriver):
		return "Сервис отслеживания временно недоступен. Попробуйте позже."
	case errors.Is(err, extractor.ErrElementNotFound), errors.Is(err, extractor.ErrSubmit):
		return "Не удалось выполнить поиск на сайте. Попробуйте позже."
	case errors.Is(err, extractor.ErrParse):
		return "Данные по запросу не найдены. Проверьте номер и попробуйте снова."
	case errors.Is(err, extractor.ErrNoInterception):
		return "Сайт не вернул данные по договору. Попробуйте позже."
	default:
		return "Произошла ошибка. Попробуйте позже."
	}
}

// msgContractNotFound is shown when the backend answered but had no data.
const msgContractNotFound = "По этому договору данных пока нет."

func formatContainerMessage(status tracking.ContainerStatus, city string, distanceKm *float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Контейнер %s\n", status.Number)
	fmt.Fprintf(&b, "📍 Местонахождение: %s\n", status.Location)
	fmt.Fprintf(&b, "⚙️ Действие: %s\n", status.Action)
	fmt.Fprintf(&b, "🌍 Страна: %s\n", status.Country)
	fmt.Fprintf(&b, "🕒 Дата и время: %s", status.Timestamp)
	if distanceKm != nil {
		fmt.Fprintf(&b, "\n📏 До пункта назначения (%s): ~%.0f км", city, *distanceKm)
	}
	return b.String()
}

func formatContractMessage(number string, r tracking.ContractRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📄 Договор %s\n", number)
	fields := []struct {
		label string
		value string
	}{
		{"Код проверки", r.VerificationCode},
		{"Дата приёма", r.ReceivedAt},
		{"Модель автомобиля", r.VehicleModel},
		{"Номер кузова", r.VIN},
		{"Пункт доставки", r.DeliveryPoint},
		{"Дата погрузки в контейнер", r.LoadedAt},
		{"Контейнер", r.ContainerNumber},
		{"Дата отправки", r.ShippedAt},
		{"Статус оплаты", r.PaymentStatus},
	}
	for _, f := range fields {
		v := f.value
		if tracking.IsPlaceholder(v) {
			v = "—"
		}
		fmt.Fprintf(&b, "%s: %s\n", f.label, v)
	}
	if r.HasContainer() {
		fmt.Fprintf(&b, "\n🚢 Контейнер %s уже в пути — его можно отслеживать.", r.ContainerNumber)
	}
	return strings.TrimRight(b.String(), "\n")
}
