package document

import "context"

type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
	// FormatDocx is a whole .docx file inserted through the host's file import.
	FormatDocx Format = "docx"
	FormatPNG  Format = "png"
)

func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatHTML, FormatDocx, FormatPNG:
		return true
	}
	return false
}

// Accessor is the engine's only view of the host document. Every call may
// suspend until the host answers.
type Accessor interface {
	ReadSelection(ctx context.Context) (string, error)
	ReadBody(ctx context.Context) (string, error)
	ReplaceSelection(ctx context.Context, text string) error
	InsertAtEnd(ctx context.Context, data []byte, format Format) error
	// SubscribeSelection delivers every selection change until cancel is called.
	// Events are not coalesced.
	SubscribeSelection() (events <-chan string, cancel func())
}
