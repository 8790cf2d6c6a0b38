package domain

// Media types accepted in an Input.
const (
	MediaImage = "image"
	MediaAudio = "audio"
)

// MediaRef is an attachment already turned into text by a media service.
type MediaRef struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Filename    string `json:"filename,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

// Input is the normalized inbound event every transport produces.
type Input struct {
	Text  string     `json:"text"`
	Media []MediaRef `json:"media,omitempty"`
}

// TextInput wraps plain text.
func TextInput(text string) Input {
	return Input{Text: text}
}

// Empty reports whether the input carries neither text nor media.
func (in Input) Empty() bool {
	return in.Text == "" && len(in.Media) == 0
}
