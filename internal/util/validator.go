package util

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 注册 gin 绑定使用的自定义校验规则
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterValidation("calendar_date", func(fl validator.FieldLevel) bool {
			_, err := NormalizeDate(fl.Field().String())
			return err == nil
		})
	})
}
