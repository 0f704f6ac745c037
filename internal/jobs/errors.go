package jobs

import "errors"

var (
	// ErrNotFound は指定されたジョブが存在しないことを表します。
	ErrNotFound = errors.New("job not found")
	// ErrJobFinished は終了済みジョブの状態を書き換えようとしたことを表します。
	ErrJobFinished = errors.New("job already finished")
	// ErrShuttingDown はシャットダウン中に新しいジョブを受け付けないことを表します。
	ErrShuttingDown = errors.New("job manager is shutting down")
)

// エラーコード
const (
	CodeFetchFailed         = "FETCH_FAILED"
	CodeDecodeFailed        = "DECODE_FAILED"
	CodeTranscriptionFailed = "TRANSCRIPTION_FAILED"
	CodeInternal            = "INTERNAL_ERROR"
)

// Error はジョブ失敗時のコード付きエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
