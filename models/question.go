package models

// QuestionType enumerates the contact form categories.
type QuestionType string

const (
	QuestionBugReport     QuestionType = "버그 신고"
	QuestionFeatureIdea   QuestionType = "신기능 건의"
	QuestionNewRestaurant QuestionType = "음식점 신규 등록"
	QuestionOther         QuestionType = "기타"
)

var QuestionTypes = []QuestionType{
	QuestionBugReport,
	QuestionFeatureIdea,
	QuestionNewRestaurant,
	QuestionOther,
}

func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Question is a contact form submission forwarded to the restaurant API.
type Question struct {
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Type          QuestionType `json:"type"`
	Title         string       `json:"title"`
	Content       string       `json:"content"`
	Agreement     bool         `json:"agreement"`
	AttachmentURL string       `json:"attachmentUrl,omitempty"`
}

// Attachment is the optional file sent with a question.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
