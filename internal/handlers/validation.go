package handlers

import (
	"quill/internal/services"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// 注册请求体中用到的自定义 binding 规则
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return services.ValidUsername(fl.Field().String())
		})
	}
}
