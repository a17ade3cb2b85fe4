package http

type SendMessageRequest struct {
	Text string `json:"text"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
