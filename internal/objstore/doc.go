// Package objstore хранит блобы на файловой системе с разбиением по каталогам:
// ключ f468483c313401e8 лежит в <root>/f4/68/f468483c313401e8. Так число записей
// в одном каталоге остаётся небольшим.
//
// Время последнего доступа хранится как mtime файла и обновляется при каждом
// чтении и записи; по нему Sweep удаляет давно не используемые объекты.
package objstore
