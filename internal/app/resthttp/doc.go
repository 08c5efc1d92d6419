// Package resthttp реализует HTTP-интерфейс хранилища блобов. Все операции
// работают на корневом пути:
//   - GET /?key=K: отдаёт блоб; без key отдаёт описание сервиса.
//   - POST / (data): сохраняет блоб, только по HTTPS; отвечает {key, admin_key}.
//   - PUT / (key, data, token|admin_key): перезаписывает блоб.
//   - DELETE / (key, token|admin_key): удаляет блоб.
//   - GET /health: число объектов и их суммарный размер.
//   - GET /metrics: метрики prometheus.
//
// Параметры принимаются url-encoded формой в теле или в query.
package resthttp
