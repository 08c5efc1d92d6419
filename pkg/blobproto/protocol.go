// Package blobproto описывает протокол HTTP-взаимодействия с хранилищем блобов.
package blobproto

// Параметры форм и запросов.
const (
	ParamKey      = "key"
	ParamData     = "data"
	ParamToken    = "token"
	ParamAdminKey = "admin_key"
)

// Ограничения и служебные значения.
const (
	// MaxDataSize: максимальный размер блоба в байтах.
	MaxDataSize = 64 << 10

	FormContentType      = "application/x-www-form-urlencoded"
	HeaderForwardedProto = "X-Forwarded-Proto"
)

// Сообщения, которые сервер отдаёт в поле message.
const (
	MsgRateLimited = "You are limited to 1 request/second"
	MsgCollision   = "Unlucky hash collision. Try again."
	MsgUpdated     = "Resource updated"
	MsgDeleted     = "Resource deleted"
	MsgNotFound    = "Key not found."
)
