package controllers

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Nigerian mobile numbers in local (080...) or international (+23480...) form.
var ngPhonePattern = regexp.MustCompile(`^(?:\+234|0)[789][01]\d{8}$`)

var registerOnce sync.Once

// registerValidators adds the custom binding tags used by request models.
// gin's default validator is go-playground/validator, so tags registered
// here are enforced by ShouldBindJSON.
func registerValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("ng_phone", func(fl validator.FieldLevel) bool {
				return ngPhonePattern.MatchString(fl.Field().String())
			})
		}
	})
}
