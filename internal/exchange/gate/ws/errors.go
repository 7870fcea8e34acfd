package ws

import "errors"

var (
	ErrConnect          = errors.New("ошибка подключения к WS")
	ErrSubscribe        = errors.New("ошибка подписки WS")
	ErrReceive          = errors.New("ошибка чтения WS")
	ErrSend             = errors.New("ошибка отправки в WS")
	ErrIdle             = errors.New("WS молчит дольше допустимого")
	ErrRetriesExhausted = errors.New("исчерпаны попытки переподключения WS")
	ErrNotConnected     = errors.New("WS не подключён")
	ErrAlreadyRunning   = errors.New("WS сессия уже запущена")
)
