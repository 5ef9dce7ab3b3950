package models

// Feedback сообщение обратной связи от посетителя сайта.
type Feedback struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Text  string `json:"text"`
}
