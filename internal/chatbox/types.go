package chatbox

import "time"

// Topic groups chatbox questions.
type Topic struct {
	TopicID         int64     `json:"topic_id"`
	TopicName       string    `json:"topic_name"`
	CreatedByUserID *int64    `json:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Question is a frequently asked question with a markdown answer. A
// question may own a guided flow of yes/no steps.
type Question struct {
	QuestionID      int64     `json:"question_id"`
	TopicID         int64     `json:"topic_id"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	AnswerHTML      string    `json:"answer_html"`
	CreatedByUserID *int64    `json:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// QuestionInput carries the author-supplied question fields.
type QuestionInput struct {
	TopicID  int64
	Question string
	Answer   string
}
