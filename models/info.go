package models

type FAQ struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

type PatchNote struct {
	ID        int    `json:"id" yaml:"id"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
	Version   string `json:"version" yaml:"version"`
	Content   string `json:"content" yaml:"content"`
}
