package model

// CarInfo — отображаемые данные о машине и закреплённом инструкторе.
type CarInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Profile — профиль авторизованного пользователя.
// Из него нужен только идентификатор студента для записи на занятия.
type Profile struct {
	StudentDetails struct {
		ID int64 `json:"id"`
	} `json:"studentDetails"`
}
