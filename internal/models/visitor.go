package models

import "github.com/google/uuid"

// Visitor описывает личность посетителя в рамках одного запроса:
// ключ сессии есть всегда, пользователь — только после входа.
// Владелец корзины определяется именно этой парой: либо Guest(session),
// либо User(id), но никогда оба одновременно.
type Visitor struct {
	SessionKey string
	UserID     *uuid.UUID
	IsStaff    bool
}

// Authenticated сообщает, вошел ли посетитель в аккаунт.
func (v Visitor) Authenticated() bool {
	return v.UserID != nil
}
