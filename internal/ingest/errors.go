package ingest

import "errors"

var (
	ErrNoImage          = errors.New("no image provided")
	ErrSchemeNotAllowed = errors.New("url scheme not allowed")
	ErrFetch            = errors.New("fetch image failed")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidFormat    = errors.New("invalid file format")
	ErrProcessing       = errors.New("image processing failed")
)

// ValidationError 携带面向用户的提示信息
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(sentinel error, msg string) error {
	return &ValidationError{Msg: msg, Err: sentinel}
}

// UserMessage 提取面向用户的提示，非校验错误返回空串
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Msg
	}
	return ""
}
