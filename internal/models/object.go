package models

import "time"

// Object описывает сохранённый блоб так, как его видит хранилище.
type Object struct {
	Key        string
	Data       []byte
	LastAccess time.Time
}

// Created возвращается после успешного POST: ключ для чтения и ключ администратора.
type Created struct {
	Key      string `json:"key"`
	AdminKey string `json:"admin_key"`
}

// SweepStats агрегирует результат одного прохода очистки.
type SweepStats struct {
	Scanned      int
	Removed      int
	TempsRemoved int
	RatesPruned  int
}
