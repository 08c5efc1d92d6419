// Package keys вычисляет ключи объектов, ключи администратора и временные токены.
// Все производные значения: hex-представление HMAC-SHA1, ничего из этого не хранится:
// при каждой проверке значение пересчитывается заново.
package keys

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	// KeyLength: длина ключа объекта в hex-символах.
	KeyLength = 16
	// BucketSeconds: ширина временного окна токена.
	BucketSeconds = 30

	saltBytes = 32
)

func mac(secret, message string) string {
	h := hmac.New(sha1.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// DeriveKey строит ключ объекта из содержимого, времени запроса и адреса клиента.
// Коллизии возможны и обрабатываются вызывающей стороной.
func DeriveKey(data []byte, at time.Time, addr string) string {
	h := hmac.New(sha1.New, []byte(strconv.FormatInt(at.Unix(), 10)+addr))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))[:KeyLength]
}

// AdminKey детерминированно выводит ключ администратора из ключа объекта и соли сервера.
func AdminKey(key, salt string) string {
	return mac(salt, key)
}

// Bucket округляет момент времени вниз до границы окна токена.
func Bucket(now time.Time) int64 {
	t := now.Unix()
	return t - mod(t, BucketSeconds)
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Token вычисляет токен для окна bucket и сообщения message.
func Token(secret string, bucket int64, message string) string {
	return mac(secret, fmt.Sprintf("%d:%s", bucket, message))
}

// ValidToken принимает токен текущего и предыдущего окна, то есть от 30 до 60 секунд.
func ValidToken(secret, token, message string, now time.Time) bool {
	if token == "" {
		return false
	}
	cur := Bucket(now)
	for _, b := range [...]int64{cur, cur - BucketSeconds} {
		if hmac.Equal([]byte(token), []byte(Token(secret, b, message))) {
			return true
		}
	}
	return false
}

// PutMessage: подписываемое сообщение для PUT.
func PutMessage(key string, data []byte) string {
	return key + ":" + string(data)
}

// DeleteMessage: подписываемое сообщение для DELETE.
func DeleteMessage(key string) string {
	return key
}

// ValidKey проверяет формат ключа: ровно 16 строчных hex-символов.
func ValidKey(key string) bool {
	if len(key) != KeyLength {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// NewSalt генерирует новую случайную соль установки.
func NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
