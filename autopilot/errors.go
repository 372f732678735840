package autopilot

import (
	"context"

	"github.com/pkg/errors"
)

// 作答中止的四类原因，处理方式相同：记录日志、中止本次作答、释放锁
var (
	ErrMissingData         = errors.New("missing exercise data")
	ErrMissingElement      = errors.New("missing page element")
	ErrUnresolvedFragment  = errors.New("unresolved answer fragment")
	ErrUnknownQuestionType = errors.New("unknown question type")
)

// AbortKind 返回中止原因的分类名，用于日志和作答记录
func AbortKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingData):
		return "missing_data"
	case errors.Is(err, ErrMissingElement):
		return "missing_element"
	case errors.Is(err, ErrUnresolvedFragment):
		return "unresolved_fragment"
	case errors.Is(err, ErrUnknownQuestionType):
		return "unknown_question_type"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func missingElement(selector string) error {
	return errors.Wrapf(ErrMissingElement, "selector %q", selector)
}
