package model

// テキスト版とHTML版を持つメール
type EmailMessage struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}
