package models

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate 校验拦截到的数据是否为可用的练习（必须有 content.items）
func (s *ExerciseSet) Validate() error {
	if s == nil {
		return fmt.Errorf("exercise set is nil")
	}
	if err := getValidator().Struct(s); err != nil {
		return fmt.Errorf("invalid exercise payload: %w", err)
	}
	return nil
}
