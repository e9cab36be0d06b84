package transfer

type PostGeneration struct {
	Topic             string `json:"topic"`
	AdditionalContext string `json:"additional_context"`
}

type PostSchedule struct {
	ScheduledFor string `json:"scheduled_for"`
	Visibility   string `json:"visibility"`
}

type PostPublish struct {
	Visibility string `json:"visibility"`
}

type PostUpdate struct {
	Content          *string `json:"content"`
	Status           *string `json:"status"`
	ImageBase64      *string `json:"image_base64"`
	ImageMimeType    *string `json:"image_mime_type"`
	ImageURL         *string `json:"image_url"`
	ImageStoragePath *string `json:"image_storage_path"`
}

type PostEmail struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Intro      string   `json:"intro"`
}

type TopicSuggestion struct {
	Occupation string `json:"occupation"`
	Limit      int    `json:"limit"`
}
